// Package config loads, normalizes, and validates routekeeper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROUTEKEEPER_API_TOKEN. The Config type centralizes the sample filter
// thresholds, timer cadences, storage locations, and export settings so the
// daemon and CLI discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
