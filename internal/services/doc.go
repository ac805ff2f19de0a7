// Package services defines shared utilities consumed by the sync engines.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, task IDs, component names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (network, transfer, validation, conflict) with errors.Is.
//   - Details, which turns a marked error into kind/hint fields for logs.
package services
