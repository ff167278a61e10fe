package vault_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ydhouse/internal/paths"
	"ydhouse/internal/services"
	"ydhouse/internal/vault"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseMarkdownMetadata(t *testing.T) {
	content := "---\n" +
		"title: \"첫 번째 영상\"\n" +
		"channel: '리베라'\n" +
		"upload: 2024-05-01\n" +
		"duration: 12:34\n" +
		"duration_seconds: 754\n" +
		"view_count: not-a-number\n" +
		"topic: ['경제', \"투자\", , 부동산]\n" +
		"video_id: abc123\n" +
		"source_url: https://youtu.be/abc123\n" +
		"unknown: ignored\n" +
		"title: second title ignored\n" +
		"---\n" +
		"body text: not metadata\n"

	meta, err := vault.ParseMarkdownMetadata(content)
	if err != nil {
		t.Fatalf("ParseMarkdownMetadata: %v", err)
	}
	if meta.Title != "첫 번째 영상" || meta.Channel != "리베라" {
		t.Fatalf("unexpected title/channel: %+v", meta)
	}
	if meta.UploadDate != "2024-05-01" {
		t.Fatalf("unexpected upload date %q", meta.UploadDate)
	}
	if meta.Duration != "12:34" {
		t.Fatalf("expected duration to keep text after first colon, got %q", meta.Duration)
	}
	if meta.DurationSeconds == nil || *meta.DurationSeconds != 754 {
		t.Fatalf("unexpected duration seconds %v", meta.DurationSeconds)
	}
	if meta.ViewCount != nil {
		t.Fatalf("expected unparsable view count to be nil, got %v", *meta.ViewCount)
	}
	want := []string{"경제", "투자", "부동산"}
	if len(meta.Topics) != len(want) {
		t.Fatalf("unexpected topics %v", meta.Topics)
	}
	for i := range want {
		if meta.Topics[i] != want[i] {
			t.Fatalf("topic %d = %q, want %q", i, meta.Topics[i], want[i])
		}
	}
	if meta.SourceURL != "https://youtu.be/abc123" {
		t.Fatalf("unexpected source url %q", meta.SourceURL)
	}
}

func TestParseMarkdownMetadataWithoutFrontmatter(t *testing.T) {
	meta, err := vault.ParseMarkdownMetadata("title: not frontmatter\n")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if meta.Title != "" {
		t.Fatalf("expected empty metadata, got %+v", meta)
	}
}

func TestParseMarkdownMetadataUnterminated(t *testing.T) {
	_, err := vault.ParseMarkdownMetadata("---\ntitle: x\n")
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func buildVault(t *testing.T) paths.Layout {
	t.Helper()
	layout := paths.New(t.TempDir())
	videos := layout.VideosDir()

	chanA := filepath.Join(videos, "%EB%A6%AC%EB%B2%A0%EB%9D%BC", "2024", "20240501_first")
	writeFile(t, filepath.Join(chanA, "video.mp4"), "v")
	writeFile(t, filepath.Join(chanA, "captions.md"), "---\ntitle: First\nchannel: Frontmatter Name\n---\nbody\n")
	writeFile(t, filepath.Join(chanA, "captions.txt"), "plain")

	chanB := filepath.Join(videos, "alpha", "2023", "second")
	writeFile(t, filepath.Join(chanB, "video.mp4"), "v")
	writeFile(t, filepath.Join(chanB, "captions.md"), "---\ntitle: broken\n")

	chanB2 := filepath.Join(videos, "alpha", "2023", "third")
	writeFile(t, filepath.Join(chanB2, "video.mp4"), "v")

	writeFile(t, filepath.Join(videos, "alpha", "notes.txt"), "no video here")
	return layout
}

func TestScanBuildsRecords(t *testing.T) {
	layout := buildVault(t)
	records, err := vault.NewScanner(layout, nil).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(records), records)
	}

	byTitle := make(map[string]vault.Record)
	for _, rec := range records {
		byTitle[rec.Title] = rec
	}

	first, ok := byTitle["First"]
	if !ok {
		t.Fatalf("expected record titled First, got %+v", records)
	}
	if first.Channel != "리베라" {
		t.Fatalf("expected decoded path channel, got %q", first.Channel)
	}
	if first.VideoPath != "vault/10_videos/%EB%A6%AC%EB%B2%A0%EB%9D%BC/2024/20240501_first/video.mp4" {
		t.Fatalf("unexpected relative video path %q", first.VideoPath)
	}
	if filepath.Base(first.CaptionsPath) != "captions.txt" {
		t.Fatalf("expected captions.txt to be preferred, got %q", first.CaptionsPath)
	}

	broken, ok := byTitle["second"]
	if !ok {
		t.Fatalf("expected malformed frontmatter to fall back to folder title, got %+v", records)
	}
	if broken.Channel != "alpha" {
		t.Fatalf("unexpected channel %q", broken.Channel)
	}

	third := byTitle["third"]
	if filepath.Base(third.CaptionsPath) != "captions.md" {
		t.Fatalf("expected captions.md fallback path, got %q", third.CaptionsPath)
	}
}

func TestScanMissingVaultIsNotFound(t *testing.T) {
	_, err := vault.NewScanner(paths.New(t.TempDir()), nil).Scan()
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupSortsAndPartitions(t *testing.T) {
	records := []vault.Record{
		{Title: "1", Channel: "zeta"},
		{Title: "2", Channel: "alpha"},
		{Title: "3", Channel: "zeta"},
		{Title: "4", Channel: "mid"},
	}
	groups := vault.Group(records)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	total := 0
	for i, g := range groups {
		if i > 0 && groups[i-1].Channel >= g.Channel {
			t.Fatalf("groups not sorted: %q before %q", groups[i-1].Channel, g.Channel)
		}
		for _, rec := range g.Videos {
			if rec.Channel != g.Channel {
				t.Fatalf("record %q in wrong group %q", rec.Title, g.Channel)
			}
		}
		total += len(g.Videos)
	}
	if total != len(records) {
		t.Fatalf("expected every record exactly once, got %d", total)
	}
}

func TestEmbeddableChannels(t *testing.T) {
	layout := buildVault(t)
	got, err := vault.EmbeddableChannels(layout)
	if err != nil {
		t.Fatalf("EmbeddableChannels: %v", err)
	}
	if len(got) != 2 || got[0] != "%EB%A6%AC%EB%B2%A0%EB%9D%BC" || got[1] != "alpha" {
		t.Fatalf("unexpected channels %v", got)
	}
}
