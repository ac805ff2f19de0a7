// Package devremote provides file-backed implementations of the remote record
// service and blob store. Records are JSON documents under one directory and
// blobs are files under another, addressed by blob:// URLs. The CLI uses them
// to run the engine end to end without a hosted backend.
package devremote
