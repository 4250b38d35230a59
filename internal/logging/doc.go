// Package logging assembles structured slog loggers used across zbridge.
//
// It owns the console and JSON handlers, fans records out to a JSON log file
// when one is configured, and exposes context-aware helpers so bridge code can
// tag log lines with the scene, metadata section and correlation id it is
// working on. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
