package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"ydhouse/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSpawnFailed, "supervisor", "spawn", "start worker", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSpawnFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"supervisor", "spawn", "start worker"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWorkerErrorUnwrapsToWorkerFailed(t *testing.T) {
	err := error(&services.WorkerError{Program: "python3", ExitCode: 2, StderrTail: "Traceback\nValueError"})
	if !errors.Is(err, services.ErrWorkerFailed) {
		t.Fatalf("expected ErrWorkerFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 2") || !strings.Contains(err.Error(), "ValueError") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	var workerErr *services.WorkerError
	if !errors.As(err, &workerErr) || workerErr.ExitCode != 2 {
		t.Fatalf("expected errors.As to expose exit code, got %#v", workerErr)
	}
}

func TestTrimTailKeepsLastLines(t *testing.T) {
	got := services.TrimTail([]string{"a", "", "b", "  c  ", "d"}, 2)
	if got != "c\nd" {
		t.Fatalf("unexpected tail %q", got)
	}
	if all := services.TrimTail([]string{"x", "y"}, 0); all != "x\ny" {
		t.Fatalf("expected unlimited tail, got %q", all)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrNotFound, "paths", "require", "missing", nil), http.StatusNotFound},
		{services.ErrPathEscape, http.StatusNotFound},
		{services.ErrDuplicateChannel, http.StatusConflict},
		{services.ErrJobAlreadyRunning, http.StatusConflict},
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestErrorKindPrefersSpecificMarkers(t *testing.T) {
	timeout := services.Wrap(services.ErrTimeout, "supervisor", "watch", "no output", nil)
	if kind := services.ErrorKind(timeout); kind != "timeout" {
		t.Fatalf("expected timeout kind, got %q", kind)
	}
	if kind := services.ErrorKind(&services.WorkerError{ExitCode: 1}); kind != "worker_failed" {
		t.Fatalf("expected worker_failed kind, got %q", kind)
	}
	if kind := services.ErrorKind(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %q", kind)
	}
}

func TestMarkerForKindRoundTrips(t *testing.T) {
	markers := []error{
		services.ErrNotFound, services.ErrDuplicateChannel, services.ErrSpawnFailed,
		services.ErrTimeout, services.ErrCancelled, services.ErrWorkerFailed,
		services.ErrPathEscape, services.ErrPortUnavailable, services.ErrMalformed,
		services.ErrJobAlreadyRunning, services.ErrValidation,
	}
	for _, marker := range markers {
		kind := services.ErrorKind(marker)
		if got := services.MarkerForKind(kind); got != marker {
			t.Fatalf("kind %q mapped to %v, want %v", kind, got, marker)
		}
	}
	if services.MarkerForKind("internal") != nil {
		t.Fatal("internal kind should have no marker")
	}
}
