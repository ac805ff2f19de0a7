// Package logging assembles structured slog loggers and formatting helpers used
// across shotsync.
//
// It owns the configurable console/JSON handlers, mirrors every record into a
// JSON log file under the configured log directory, and exposes context-aware
// helpers so engine code can tag log lines with project IDs, task IDs, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
