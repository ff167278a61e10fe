// Package history records supervised job runs in SQLite.
//
// It is a log, not a queue: runs interrupted by a daemon restart are marked
// as such on open and never resumed. The status aggregator reads the most
// recent successful download from here.
package history
