// Package status summarizes the library for the dashboard: record and channel
// counts, vault size, vector index presence, the last successful download and
// the jobs currently running.
package status
