// Package config loads, normalizes, and validates ydhouse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the YDH_PROJECT_ROOT environment
// override. The Config type centralizes the knobs the daemon and CLI need:
// worker supervision timing, downloader rate limits, media server CORS
// origins, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
