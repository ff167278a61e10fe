package paths_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ydhouse/internal/config"
	"ydhouse/internal/paths"
	"ydhouse/internal/services"
)

func TestResolveRules(t *testing.T) {
	cases := []struct {
		cwd  string
		want string
	}{
		{"/home/u/ydh/app/src-tauri", "/home/u/ydh"},
		{"/home/u/ydh/app", "/home/u/ydh"},
		{"/home/u/ydh/app/dist/assets", "/home/u/ydh"},
		{"/home/u/ydh", "/home/u/ydh"},
		{"/srv/apps/ydh", "/srv/apps/ydh"},
	}
	for _, tc := range cases {
		if got := paths.Resolve(filepath.FromSlash(tc.cwd)); got != filepath.FromSlash(tc.want) {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.cwd, got, tc.want)
		}
	}
}

func TestLayoutDerivedPaths(t *testing.T) {
	l := paths.NewForOS("/p", "linux")
	checks := map[string]string{
		l.Vault():           "/p/vault",
		l.VideosDir():       "/p/vault/10_videos",
		l.IndicesDir():      "/p/vault/90_indices",
		l.ChromaDir():       "/p/vault/90_indices/chroma",
		l.DownloadsDir():    "/p/vault/downloads",
		l.ChannelsFile():    "/p/channels.txt",
		l.Interpreter():     "/p/venv/bin/python3",
		l.EmbedScript():     "/p/vault/90_indices/embed.py",
		l.IntegrityScript(): "/p/vault/90_indices/integrity_check.py",
		l.PromptScript():    "/p/vault/90_indices/auto_prompt.py",
		l.PromptsDir():      "/p/vault/90_indices/prompts",
	}
	for got, want := range checks {
		if got != filepath.FromSlash(want) {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	win := paths.NewForOS("/p", "windows")
	if !strings.HasSuffix(filepath.ToSlash(win.Interpreter()), "venv/Scripts/python.exe") {
		t.Fatalf("unexpected windows interpreter %q", win.Interpreter())
	}
}

func TestFromConfigPrefersConfiguredRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ProjectRoot = "/configured"
	if got := paths.FromConfig(&cfg, "/x/app").Root; got != "/configured" {
		t.Fatalf("expected configured root, got %q", got)
	}
	cfg.Paths.ProjectRoot = ""
	if got := paths.FromConfig(&cfg, "/x/app").Root; got != "/x" {
		t.Fatalf("expected resolved root, got %q", got)
	}
}

func TestRequireReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	err := paths.Require(filepath.Join(dir, "embed.py"), "embedding script")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "embedding script") {
		t.Fatalf("expected descriptive message, got %v", err)
	}
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := paths.Require(present, "file"); err != nil {
		t.Fatalf("expected nil for existing file, got %v", err)
	}
}

func TestRelUsesForwardSlashes(t *testing.T) {
	l := paths.New(filepath.FromSlash("/p"))
	got := l.Rel(filepath.Join(l.VideosDir(), "chan", "2024", "video.mp4"))
	if got != "vault/10_videos/chan/2024/video.mp4" {
		t.Fatalf("unexpected rel path %q", got)
	}
}
