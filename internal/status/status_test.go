package status_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ydhouse/internal/channels"
	"ydhouse/internal/paths"
	"ydhouse/internal/status"
	"ydhouse/internal/testsupport"
)

type fixedHistory struct{ at *time.Time }

func (f fixedHistory) LastSuccessAt(context.Context, string) (*time.Time, error) { return f.at, nil }

type fixedJobs []string

func (f fixedJobs) Tags() []string { return f }

func TestCollectCountsLibrary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	layout := testsupport.NewProject(t, cfg, "")
	testsupport.AddVideo(t, layout, "alpha", "v1", "title: 첫 영상")
	testsupport.AddVideo(t, layout, "alpha", "v2", "")
	testsupport.AddVideo(t, layout, "beta", "v1", "")

	store := channels.NewStore(layout.ChannelsFile())
	for _, url := range []string{"https://www.youtube.com/@alpha", "https://www.youtube.com/@beta"} {
		if err := store.Add(url); err != nil {
			t.Fatalf("add %s: %v", url, err)
		}
	}
	if _, err := store.Toggle("https://www.youtube.com/@beta"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg := status.New(layout, store, fixedHistory{at: &finished}, fixedJobs{"download"}, nil)
	got, err := agg.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.TotalVideos != 3 {
		t.Fatalf("expected 3 videos, got %d", got.TotalVideos)
	}
	if got.TotalChannels != 2 {
		t.Fatalf("expected 2 channels, got %d", got.TotalChannels)
	}
	if got.VectorDBStatus != status.VectorDBInactive {
		t.Fatalf("expected inactive vector db, got %q", got.VectorDBStatus)
	}
	if got.VaultSizeMB <= 0 {
		t.Fatalf("expected non-zero vault size, got %f", got.VaultSizeMB)
	}
	if got.LastDownload == nil || !got.LastDownload.Equal(finished) {
		t.Fatalf("unexpected last download %v", got.LastDownload)
	}
	if len(got.RunningJobs) != 1 || got.RunningJobs[0] != "download" {
		t.Fatalf("unexpected running jobs %v", got.RunningJobs)
	}
}

func TestCollectVectorDBActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	layout := testsupport.NewProject(t, cfg, "")
	if err := os.MkdirAll(layout.ChromaDir(), 0o755); err != nil {
		t.Fatalf("mkdir chroma: %v", err)
	}

	got, err := status.New(layout, nil, nil, nil, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.VectorDBStatus != status.VectorDBActive {
		t.Fatalf("expected active, got %q", got.VectorDBStatus)
	}
	if got.LastDownload != nil {
		t.Fatalf("expected no last download, got %v", got.LastDownload)
	}
	if got.RunningJobs == nil {
		t.Fatal("running jobs should encode as an empty list")
	}
}

func TestCollectMissingProject(t *testing.T) {
	layout := paths.New(filepath.Join(t.TempDir(), "absent"))
	got, err := status.New(layout, nil, nil, nil, nil).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.TotalVideos != 0 || got.TotalChannels != 0 || got.VaultSizeMB != 0 {
		t.Fatalf("expected empty status, got %+v", got)
	}
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.bin"), 1000)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "deeper", "b.bin"), 24)

	size, err := status.DirSize(context.Background(), root)
	if err != nil {
		t.Fatalf("DirSize: %v", err)
	}
	if size != 1024 {
		t.Fatalf("expected 1024 bytes, got %d", size)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := status.DirSize(ctx, root); err == nil {
		t.Fatal("expected cancellation error")
	}
}
