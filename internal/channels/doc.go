// Package channels reads and rewrites the flat channel-URL list.
//
// The file is the only source of truth: every operation re-reads it and every
// mutation rewrites the whole file under an advisory lock, so concurrent
// editors resolve last-writer-wins without partial writes. Disabled entries
// keep their URL behind a "# " prefix. Lines a mutation does not touch are
// written back byte for byte.
package channels
