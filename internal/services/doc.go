// Package services defines shared utilities consumed by the reconciliation
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, entity IDs, and command names for
//     logging.
//   - Structured error markers plus the Wrap helper so failures from the
//     taxonomy service, the catalog database, and configuration can be told
//     apart with errors.Is.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across commands.
package services
