// Package daemon coordinates the long-running ydhouse process.
//
// It owns the Core Services (event bus, process supervisor, run history, job
// façade, status aggregator and media server) for the life of the process,
// enforces single-instance execution with a flock-based lock, and serves the
// loopback JSON API the desktop shell and the CLI talk to.
//
// Keep orchestration here: worker invocation belongs to jobs, process
// lifecycles to supervisor, and file serving to mediaserver. The daemon only
// wires them together and translates errors into HTTP responses.
package daemon
