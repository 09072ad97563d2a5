// Package config loads, normalizes, and validates crittersync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CRITTERSYNC_DATABASE. The Config type centralizes every knob the CLI needs,
// so the MacDive database, the overrides file, and the iNaturalist client
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
