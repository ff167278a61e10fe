// Package grammar maps worker output lines to progress deltas.
//
// A Grammar is an ordered rule table. Each rule belongs to a category and the
// first matching rule within a category wins, so a single line can, for
// example, both report an error and carry a percentage. Rules only ever
// produce a Delta; Apply folds deltas into a job's Counters and returns the
// composed Update the supervisor publishes. The package also parses the RAG
// worker's PROGRESS:/FINAL_ANSWER: sentinel lines.
package grammar
