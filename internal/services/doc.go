// Package services defines shared utilities consumed by the bridge components.
//
// Key responsibilities:
//   - Context helpers that stamp scene names, metadata sections, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so host, metadata and
//     registry failures can be told apart with errors.Is.
//
// Use these helpers when wiring new components so failure classification stays
// uniform: metadata parse errors may degrade to empty defaults, host and
// workdir failures must reach the caller.
package services
