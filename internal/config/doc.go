// Package config loads, normalizes, and validates moodsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// engine, janitor, and CLI need: storage backend selection, retention and
// dedup window bounds, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and bounded values. Out-of-range values are rejected at load
// time, never at use time.
package config
