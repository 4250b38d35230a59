// Package pipeline is the host facade pipeline plugins talk to.
//
// It binds one host session to a workfile store and a container registry and
// exposes the host operations a pipeline framework expects: workfile open and
// save, instance and container metadata, creator state, and mesh loading.
// Construction wires the process host (optionally wrapped in the retry host)
// and the workfile history database from configuration.
package pipeline
