package main

import (
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ydhouse/internal/api"
	"ydhouse/internal/history"
	"ydhouse/internal/testsupport"
)

func TestStatusCommandWithDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.AddVideo(t, env.layout, "채널A", "20240101_첫영상", "title: \"첫 영상\"")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "[OK] Running")
	requireContains(t, out, "== Archive ==")
	requireContains(t, out, "Videos:")
	requireContains(t, out, "Running jobs:")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var summary api.StatusResponse
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if summary.TotalVideos != 1 {
		t.Fatalf("expected 1 video, got %d", summary.TotalVideos)
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	testsupport.NewProject(t, cfg, "")
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg, addr)

	out, _, err := runCLI(t, []string{"status"}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	if strings.Contains(out, "== Archive ==") {
		t.Fatalf("archive section should be omitted without a daemon: %q", out)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryRows(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	rows := historyRows([]history.Run{
		{Tag: "download", Status: "ok", StartedAt: started, FinishedAt: &finished, TotalSeen: 4, TotalCompleted: 3},
		{Tag: "embedding", Status: "failed", StartedAt: started, Error: "boom\ntraceback"},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][3] != "3/4" || rows[0][4] != "1m30s" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][4] != "" || rows[1][5] != "boom" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
}

func TestFormatMB(t *testing.T) {
	if got := formatMB(512); got != "512.0 MB" {
		t.Fatalf("formatMB(512) = %q", got)
	}
	if got := formatMB(2048); got != "2.0 GB" {
		t.Fatalf("formatMB(2048) = %q", got)
	}
}
