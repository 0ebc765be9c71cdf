// Package config loads, normalizes, and validates Newsreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NEWSREEL_SMTP_PASSWORD. The Config type centralizes every knob the daemon
// and CLI need, from staging and output directories to SMTP delivery and
// retention policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
