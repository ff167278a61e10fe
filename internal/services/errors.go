package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateChannel  = errors.New("duplicate channel")
	ErrSpawnFailed       = errors.New("spawn failed")
	ErrWorkerFailed      = errors.New("worker failed")
	ErrTimeout           = errors.New("timeout")
	ErrCancelled         = errors.New("cancelled")
	ErrPathEscape        = errors.New("path escape")
	ErrPortUnavailable   = errors.New("port unavailable")
	ErrMalformed         = errors.New("malformed input")
	ErrJobAlreadyRunning = errors.New("job already running")
	ErrValidation        = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrWorkerFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WorkerError reports a worker process that exited unsuccessfully.
type WorkerError struct {
	Program    string
	ExitCode   int
	StderrTail string
}

func (e *WorkerError) Error() string {
	var b strings.Builder
	b.WriteString("worker failed")
	if e.Program != "" {
		b.WriteString(": ")
		b.WriteString(e.Program)
	}
	fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *WorkerError) Unwrap() error { return ErrWorkerFailed }

// TrimTail keeps the last max non-empty lines of output joined by newlines.
func TrimTail(lines []string, max int) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	if max > 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return strings.Join(kept, "\n")
}

// ErrorKind returns a stable identifier for the taxonomy marker carried by err.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateChannel):
		return "duplicate_channel"
	case errors.Is(err, ErrSpawnFailed):
		return "spawn_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrWorkerFailed):
		return "worker_failed"
	case errors.Is(err, ErrPathEscape):
		return "path_escape"
	case errors.Is(err, ErrPortUnavailable):
		return "port_unavailable"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrJobAlreadyRunning):
		return "job_already_running"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

// MarkerForKind is the inverse of ErrorKind. Unknown kinds map to nil.
func MarkerForKind(kind string) error {
	switch kind {
	case "not_found":
		return ErrNotFound
	case "duplicate_channel":
		return ErrDuplicateChannel
	case "spawn_failed":
		return ErrSpawnFailed
	case "timeout":
		return ErrTimeout
	case "cancelled":
		return ErrCancelled
	case "worker_failed":
		return ErrWorkerFailed
	case "path_escape":
		return ErrPathEscape
	case "port_unavailable":
		return ErrPortUnavailable
	case "malformed":
		return ErrMalformed
	case "job_already_running":
		return ErrJobAlreadyRunning
	case "validation":
		return ErrValidation
	default:
		return nil
	}
}

// HTTPStatus maps an error to the status code the API server responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPathEscape):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateChannel), errors.Is(err, ErrJobAlreadyRunning), errors.Is(err, ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrPortUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
