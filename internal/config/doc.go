// Package config loads, normalizes, and validates shotsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHOTSYNC_NTFY_TOPIC. The Config type centralizes every knob the sync engine
// and CLI need: the local store location, drain cadence, retry budget, and
// notification routing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
