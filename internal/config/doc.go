// Package config loads, normalizes, and validates dubctl configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the DUBCTL_SERVICE_URL environment fallback. The
// Config type gathers the service endpoint, session directories, display
// preferences, and logging knobs so commands discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and validation errors that name the
// offending key.
package config
