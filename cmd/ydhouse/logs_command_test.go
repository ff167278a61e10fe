package main

import (
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ydhouse/internal/logging"
	"ydhouse/internal/testsupport"
)

func TestLogsCommandTailsAndFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	now := time.Now()
	env.hub.Publish(logging.LogEvent{Timestamp: now, Level: "info", Message: "scan started", Component: "downloader", JobTag: "download"})
	env.hub.Publish(logging.LogEvent{Timestamp: now, Level: "warn", Message: "index stale", Component: "embedder", JobTag: "embedding"})
	env.hub.Publish(logging.LogEvent{Timestamp: now, Level: "info", Message: "scan finished", Component: "downloader", JobTag: "download"})

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "scan started")
	requireContains(t, out, "index stale")

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.Contains(out, "scan started") || !strings.Contains(out, "scan finished") {
		t.Fatalf("expected only the newest line, got %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--component", "embedder"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --component: %v", err)
	}
	if strings.Contains(out, "scan") || !strings.Contains(out, "index stale") {
		t.Fatalf("component filter not applied: %q", out)
	}
}

func TestFormatLogEvent(t *testing.T) {
	evt := logging.LogEvent{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
		Level:     "warn",
		Message:   "worker stalled",
		Component: "supervisor",
		Fields:    map[string]string{"job_tag": "download", "attempt": "2"},
	}
	got := formatLogEvent(evt, false)
	want := "03:04:05 WARN  supervisor: worker stalled attempt=2 job_tag=download"
	if got != want {
		t.Fatalf("formatLogEvent mismatch\n got: %q\nwant: %q", got, want)
	}

	colored := formatLogEvent(evt, true)
	if !strings.Contains(colored, ansiYellow+"WARN"+ansiReset) {
		t.Fatalf("expected colored level, got %q", colored)
	}
}

func TestLogsCommandReadsFileWithoutDaemon(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg, addr)
	testsupport.WriteText(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName), "first line\nsecond line\nthird line\n")

	out, stderr, err := runCLI(t, []string{"logs", "-n", "2"}, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, stderr, "daemon not running")
	if strings.Contains(out, "first line") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "second line\nthird line\n")
}

func TestLogsCommandFileFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteText(t, filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName), "from file\n")
	env.hub.Publish(logging.LogEvent{Timestamp: time.Now(), Level: "info", Message: "from api"})

	out, _, err := runCLI(t, []string{"logs", "--file"}, env.configPath)
	if err != nil {
		t.Fatalf("logs --file: %v", err)
	}
	requireContains(t, out, "from file")
	if strings.Contains(out, "from api") {
		t.Fatalf("--file should not query the api: %q", out)
	}
}
