package events

import "time"

// Topics published by the job façade.
const (
	TopicDownload   = "download-progress"
	TopicEmbedding  = "embedding-progress"
	TopicIntegrity  = "integrity-progress"
	TopicConversion = "conversion-progress"
	TopicAI         = "ai-progress"
)

// Topics lists every known topic in display order.
func Topics() []string {
	return []string{TopicDownload, TopicEmbedding, TopicIntegrity, TopicConversion, TopicAI}
}

// KnownTopic reports whether topic is one of Topics.
func KnownTopic(topic string) bool {
	for _, t := range Topics() {
		if t == topic {
			return true
		}
	}
	return false
}

// Status is the lifecycle state carried by an event.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusWarning   Status = "warning"
)

// Terminal reports whether no further events follow for the job.
func (s Status) Terminal() bool {
	switch s {
	case StatusOK, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Event is an immutable progress notification.
type Event struct {
	Topic          string    `json:"topic"`
	JobTag         string    `json:"job_tag"`
	RunID          string    `json:"run_id,omitempty"`
	Seq            uint64    `json:"seq"`
	Status         Status    `json:"status"`
	Progress       float64   `json:"progress"`
	CurrentItem    string    `json:"current_item,omitempty"`
	TotalSeen      int       `json:"total_seen"`
	TotalCompleted int       `json:"total_completed"`
	LogMessage     string    `json:"log_message,omitempty"`
	Details        any       `json:"details,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
