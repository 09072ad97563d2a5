// Package logging assembles structured slog loggers and formatting helpers used
// across crittersync.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so reconciliation code can tag log lines
// with run IDs, entity IDs, and the active command. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
