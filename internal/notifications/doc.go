// Package notifications delivers user-facing sync events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Per-category
// toggles in the [notifications] section suppress upload, reconcile, or
// hydration events individually. Sync components depend only on the Service
// interface.
package notifications
