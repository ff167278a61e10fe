// Package services defines shared utilities consumed by the supervisor, the job
// façade, and the API server.
//
// Key responsibilities:
//   - Context helpers that stamp job tags, run IDs, and correlation
//     identifiers for logging and tracing.
//   - The error taxonomy (not found, duplicate channel, worker failure,
//     timeout, cancellation, path escape, port exhaustion) plus the Wrap
//     helper and the HTTP status mapping used by the API server.
//
// Use these markers when adding new jobs so failures classify the same way
// across the CLI, the API, and the progress events.
package services
