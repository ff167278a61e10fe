// Package api defines the wire types of the daemon's loopback HTTP API and a
// client for it.
//
// Every route maps to one verb of the command surface (list videos, toggle a
// channel, start a download, ask a question, ...). Payloads reuse the JSON
// shapes of the core packages so the desktop shell and the CLI see the same
// field names the workers' events carry: snake_case keys, RFC3339 timestamps.
//
// Errors are returned as {"error": message, "kind": kind} where kind is the
// stable taxonomy string from services.ErrorKind; the client turns them back
// into wrapped sentinel errors so callers can use errors.Is.
//
// Progress events are streamed as server-sent events from /api/events; each
// event's data line is one JSON-encoded events.Event.
package api
