// Package coordinator keeps a single tool server per host session.
//
// The first launcher invocation binds an ephemeral loopback port, publishes
// it in <state_dir>/coordinator.json and serves; later invocations find the
// running server and hand it their request. Connections are authenticated
// with a BLAKE3 keyed challenge over a shared secret, then carry
// length-prefixed CBOR messages. Requests are queued onto the session loop
// in arrival order and are never acknowledged.
package coordinator
