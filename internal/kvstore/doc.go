// Package kvstore is the local durable key-value store the sync engines keep
// their bookkeeping in: the upload queue, the tombstone set, project snapshots,
// the project summary index, and the offline replay log.
//
// Values are JSON documents stored in a single SQLite table (modernc.org/sqlite,
// WAL journal). Writes retry on SQLITE_BUSY with a short exponential backoff,
// and SetMany commits several keys in one transaction so related structures
// never persist half-updated.
package kvstore
