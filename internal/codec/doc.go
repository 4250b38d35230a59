// Package codec is the CBOR wire encoding of the coordinator protocol and
// its length-prefixed framing. Consumers import this package rather than the
// CBOR library directly so the encoder configuration stays in one place.
package codec
