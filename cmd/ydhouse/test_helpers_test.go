package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ydhouse/internal/config"
	"ydhouse/internal/daemon"
	"ydhouse/internal/jobs"
	"ydhouse/internal/logging"
	"ydhouse/internal/paths"
	"ydhouse/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	layout     paths.Layout
	daemon     *daemon.Daemon
	hub        *logging.StreamHub
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	layout := testsupport.NewProject(t, cfg, "")
	hub := logging.NewStreamHub(64)

	d, err := daemon.New(cfg, layout, logging.NewNop(), hub,
		daemon.WithJobOptions(jobs.WithEnviron(func() []string { return []string{"PATH=/usr/bin:/bin"} })),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
		_ = d.Close()
	})

	configPath := filepath.Join(homeDir, ".config", "ydhouse", "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddr())

	return &cliTestEnv{
		cfg:        cfg,
		layout:     layout,
		daemon:     d,
		hub:        hub,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiBind string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nproject_root = %q\nlog_dir = %q\nstate_dir = %q\napi_bind = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.ProjectRoot,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		apiBind,
	)
	testsupport.WriteText(t, path, content)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
