// Package daemon owns the long-running sync service.
//
// It wires configuration, the local durable store, the remote record and blob
// services, the upload queue, reconciliation, and hydration into a single
// lifecycle with flock-based locking so only one process drives a data
// directory. The CLI goes through Daemon for every operation that touches the
// queue or the project store.
//
// Keep orchestration here: sync policy lives in the syncqueue, reconcile, and
// hydrate packages while the daemon handles startup, shutdown, and the public
// surface.
package daemon
