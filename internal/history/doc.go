// Package history keeps a SQLite log of workfile opens and saves so the last
// workfile of a context can be reopened on launch and listed from the CLI.
package history
