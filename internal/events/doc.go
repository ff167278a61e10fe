// Package events carries progress events from supervised jobs to UI
// consumers.
//
// The Bus is topic addressed and never blocks publishers: each subscriber
// owns a buffered channel and events that do not fit are dropped and
// counted. A job publishes from a single goroutine, so events sharing a job
// tag reach every subscriber in emission order. The last terminal event per
// topic is retained so late subscribers can learn how the previous job ended.
package events
