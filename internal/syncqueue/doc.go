// Package syncqueue implements the upload queue engine: durable enqueue of
// image uploads and asset cleanups, a periodic drain loop with bounded batch
// concurrency, retry with exponential backoff, tombstone and orphan pruning,
// and connectivity-aware suspension.
//
// The Engine owns the in-memory queue. Every mutation happens under one mutex
// and is persisted through queuestore before the triggering call returns.
// Network calls never hold that mutex.
package syncqueue
