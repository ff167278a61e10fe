package api

import (
	"ydhouse/internal/channels"
	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/history"
	"ydhouse/internal/jobs"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
	"ydhouse/internal/status"
	"ydhouse/internal/supervisor"
	"ydhouse/internal/vault"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// VideosResponse lists media records.
type VideosResponse struct {
	Videos []vault.Record `json:"videos"`
}

// GroupedVideosResponse lists records grouped by channel.
type GroupedVideosResponse struct {
	Groups []vault.ChannelGroup `json:"groups"`
}

// ChannelsResponse lists channel entries in file order.
type ChannelsResponse struct {
	Channels []channels.Entry `json:"channels"`
}

// ChannelRequest names a channel URL.
type ChannelRequest struct {
	URL string `json:"url"`
}

// ToggleResponse reports the state after a toggle.
type ToggleResponse struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// DownloadRequest selects the batch download mode.
type DownloadRequest = jobs.DownloadOptions

// EmbedRequest names channels to embed; empty means all.
type EmbedRequest struct {
	Channels []string `json:"channels,omitempty"`
}

// ConvertRequest describes one transcode.
type ConvertRequest = jobs.ConvertOptions

// RAGRequest is one question.
type RAGRequest = jobs.RAGRequest

// RAGResponse is the answer to a question.
type RAGResponse = jobs.RAGAnswer

// JobResponse identifies a started streamed job.
type JobResponse struct {
	Tag   string `json:"job_tag"`
	RunID string `json:"run_id"`
	Topic string `json:"topic"`
}

// JobResult is the outcome of a finished job with its error flattened.
type JobResult struct {
	supervisor.Result
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// NewJobResult converts a supervisor result for the wire.
func NewJobResult(result supervisor.Result) JobResult {
	return JobResult{
		Result: result,
		Error:  result.Message(),
		Kind:   services.ErrorKind(result.Err),
	}
}

// EmbeddableChannelsResponse lists channel directories in the vault.
type EmbeddableChannelsResponse struct {
	Channels []string `json:"channels"`
}

// SearchRequest is a vector search query.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse carries the search worker's report.
type SearchResponse struct {
	Output string `json:"output"`
}

// RAGChannelsResponse lists channels indexed for question answering.
type RAGChannelsResponse struct {
	Channels []grammar.RAGChannel `json:"channels"`
}

// StatusResponse is the dashboard summary.
type StatusResponse = status.AppStatus

// HistoryResponse lists recorded job runs, newest first.
type HistoryResponse struct {
	Runs []history.Run `json:"runs"`
}

// MediaStatus describes the range media server.
type MediaStatus struct {
	Running bool `json:"running"`
	Port    int  `json:"port,omitempty"`
}

// MediaURLResponse is the playable URL of a video.
type MediaURLResponse struct {
	URL string `json:"url"`
}

// OpenRequest names a root-relative video path.
type OpenRequest struct {
	Path string `json:"path"`
}

// ConversionStatus reports whether a conversion is running.
type ConversionStatus struct {
	Running bool `json:"running"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running     bool     `json:"running"`
	PID         int      `json:"pid"`
	ProjectRoot string   `json:"project_root"`
	LockPath    string   `json:"lock_path"`
	PIDPath     string   `json:"pid_path"`
	HistoryPath string   `json:"history_path,omitempty"`
	RunningJobs []string `json:"running_jobs"`
	Dropped     uint64   `json:"dropped_events"`
}

// StopResponse acknowledges a daemon stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// LogStreamResponse is one page of daemon log events.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// Event is one progress notification as streamed from /api/events.
type Event = events.Event
