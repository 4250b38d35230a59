// Package main hosts the zbridge CLI entrypoint and command graph.
//
// The Cobra command tree covers both ends of the bridge. Host-side commands
// (launch, serve, notify, exec) drive the single-instance coordinator that
// opens pipeline tools next to the host. Metadata commands (context,
// workfile, containers, instances, history) operate on the per-scene records
// through the pipeline facade. config, menu and doctor handle setup.
//
// Keep this package lean: behaviour lives in the internal packages and is
// surfaced here through flags and output formatting.
package main
