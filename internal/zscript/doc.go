// Package zscript builds host macro scripts and runs them.
//
// A Script is an ordered list of typed operations (memory block create, write,
// dump and delete, file dialog priming, UI actions) rendered inside one
// [IFreeze, ...] block. ProcessHost hands the rendered text to the host binary
// through a temporary file and waits, with a bound, for a completion marker
// the script itself writes. Memory layers the write, dump and read sequence on
// top of a Host, which is the only way to get data back out of the host.
package zscript
