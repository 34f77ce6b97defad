// Package config loads, normalizes, and validates scenematch configuration
// data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENEMATCH_API_KEY. The Config type centralizes every knob the watcher and
// CLI need, so watch/library directories, provider credentials, and the
// disambiguation thresholds are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
