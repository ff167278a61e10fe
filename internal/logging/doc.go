// Package logging assembles structured slog loggers and formatting helpers used
// across ydhouse components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so supervisor and API code can
// tag log lines with job tags, run IDs, and correlation IDs. A bounded
// StreamHub keeps recent records for the daemon's log endpoint.
package logging
