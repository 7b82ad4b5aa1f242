// Package logging assembles structured slog loggers used across caseflow.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so request handlers and engine components
// tag log lines with request IDs, actors, and task IDs without threading them by
// hand. The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
