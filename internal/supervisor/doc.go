// Package supervisor runs worker processes and turns their output into
// progress events.
//
// Each spawned job is a scope of three goroutines joined by an errgroup: one
// reader per output stream and a watcher. Readers only forward lines; the
// watcher applies the job's grammar, assigns sequence numbers, publishes
// events, enforces the inactivity timeout and is the only code that signals
// the child. On every termination path the registry slot is cleared before
// exactly one terminal event is published. Cancelled and timed out jobs then
// have partial downloads removed from the staging directory.
//
// The supervisor never retries a worker. RunCaptured covers one-shot workers
// whose output is consumed as a whole.
package supervisor
