// Package metacodec converts pipeline metadata to and from the text forms the
// bridge stores: script string literals written into host memory, JSON files
// on disk, and NUL padded memory dumps read back from the host.
//
// The round trip law is Decode(hostStore(Encode(v))) == v, where hostStore is
// what the host keeps after evaluating the literal (zscript.Unquote) plus any
// amount of NUL padding.
package metacodec
