// Package preflight provides readiness checks for the directories and
// external programs zbridge depends on.
//
// The CLI "zbridge doctor" command runs RunAll and prints each Result. The
// coordinator server runs the same checks on startup and logs failures
// without refusing to start, since tools may still be opened.
package preflight
