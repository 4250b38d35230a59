// Package workfile owns the pipeline context of a host session and the
// workfile lifecycle around it.
//
// A Store moves through Uninitialized, Loaded and Saved. Launch and Load
// read the context from host memory, falling back to the environment; Save
// and Open drive the host's file actions and keep the current-file side file
// and per-scene metadata in step. Instances are stored per scene on disk,
// while creator state stays in host memory.
package workfile
