package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ydhouse/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("YDH_PROJECT_ROOT", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "ydhouse", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.ProjectRoot != "" {
		t.Fatalf("expected empty project root, got %q", cfg.Paths.ProjectRoot)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Supervisor.InactivityTimeoutSeconds != 15 {
		t.Fatalf("expected 15s inactivity timeout, got %d", cfg.Supervisor.InactivityTimeoutSeconds)
	}
	if got := cfg.PollInterval().Milliseconds(); got != 100 {
		t.Fatalf("expected 100ms poll interval, got %d", got)
	}
	if cfg.Downloader.SocketTimeout != 8 || cfg.Downloader.FullScanSocketTimeout != 10 {
		t.Fatalf("unexpected downloader timeouts: %+v", cfg.Downloader)
	}
	if len(cfg.MediaServer.AllowedOrigins) != 2 {
		t.Fatalf("expected two default origins, got %v", cfg.MediaServer.AllowedOrigins)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("YDH_PROJECT_ROOT", "")

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"project_root": "~/projects/ydh",
			"log_dir":      "~/logs",
		},
		"supervisor": map[string]any{
			"inactivity_timeout_seconds": 30,
		},
		"media_server": map[string]any{
			"allowed_origins":     []string{"http://localhost:5173/", "http://localhost:5173", " "},
			"fallback_port_start": 9000,
			"fallback_port_end":   9005,
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.ProjectRoot != filepath.Join(tempHome, "projects", "ydh") {
		t.Fatalf("unexpected project root: %q", cfg.Paths.ProjectRoot)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Supervisor.InactivityTimeoutSeconds != 30 {
		t.Fatalf("expected override, got %d", cfg.Supervisor.InactivityTimeoutSeconds)
	}
	if cfg.Supervisor.PollIntervalMillis != 100 {
		t.Fatalf("expected default poll interval to survive, got %d", cfg.Supervisor.PollIntervalMillis)
	}
	if len(cfg.MediaServer.AllowedOrigins) != 1 || cfg.MediaServer.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("expected deduplicated origins, got %v", cfg.MediaServer.AllowedOrigins)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestProjectRootEnvOverride(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	root := filepath.Join(tempHome, "ydh")
	t.Setenv("YDH_PROJECT_ROOT", root)

	cfg, _, _, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ProjectRoot != root {
		t.Fatalf("expected env project root %q, got %q", root, cfg.Paths.ProjectRoot)
	}
}

func TestValidateRejectsNonLoopbackBind(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = "0.0.0.0:7489"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-loopback bind")
	}
	if !strings.Contains(err.Error(), "loopback") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvertedPortRange(t *testing.T) {
	cfg := config.Default()
	cfg.MediaServer.FallbackPortStart = 9000
	cfg.MediaServer.FallbackPortEnd = 8000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted port range")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YDH_PROJECT_ROOT", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Paths.APIBind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind from sample: %q", cfg.Paths.APIBind)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}
