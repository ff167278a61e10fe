package channels_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ydhouse/internal/channels"
	"ydhouse/internal/services"
)

func newStore(t *testing.T) (*channels.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "channels.txt")
	return channels.NewStore(path), path
}

func TestAddThenToggleDisablesEntry(t *testing.T) {
	store, path := newStore(t)
	const url = "https://www.youtube.com/@x"

	if err := store.Add(url); err != nil {
		t.Fatalf("Add: %v", err)
	}
	enabled, err := store.Toggle(url)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if enabled {
		t.Fatal("expected entry to be disabled after toggle")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# Y-Data-House 채널 목록\n") {
		t.Fatalf("expected documentation header, got %q", content)
	}
	if !strings.HasSuffix(content, "\n# https://www.youtube.com/@x\n") {
		t.Fatalf("expected disabled entry at end, got %q", content)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %+v", entries)
	}
	if entries[0].Enabled || entries[0].URL != url || entries[0].Name != "x" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	store, _ := newStore(t)
	const url = "https://www.youtube.com/@dup"
	if err := store.Add(url); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := store.Add(url)
	if !errors.Is(err, services.ErrDuplicateChannel) {
		t.Fatalf("expected ErrDuplicateChannel, got %v", err)
	}
	if _, err := store.Toggle(url); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if err := store.Add(url); !errors.Is(err, services.ErrDuplicateChannel) {
		t.Fatalf("expected duplicate for disabled entry, got %v", err)
	}
	entries, _ := store.List()
	if len(entries) != 1 {
		t.Fatalf("expected list length unchanged, got %d", len(entries))
	}
}

func TestToggleTwiceIsByteIdentical(t *testing.T) {
	store, path := newStore(t)
	original := strings.Join([]string{
		"# my channels",
		"",
		"https://www.youtube.com/@a",
		"# https://www.youtube.com/@b",
		"#not a url",
		"# notes: keep @a enabled",
		"https://www.youtube.com/@c",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, url := range []string{"https://www.youtube.com/@a", "https://www.youtube.com/@b"} {
		for i := 0; i < 2; i++ {
			if _, err := store.Toggle(url); err != nil {
				t.Fatalf("Toggle(%s): %v", url, err)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != original {
		t.Fatalf("round trip changed file:\n got %q\nwant %q", data, original)
	}
}

func TestListClassifiesLines(t *testing.T) {
	store, path := newStore(t)
	content := "# header\r\nhttps://www.youtube.com/@one\r\n# https://www.youtube.com/@two\r\n# 예시:\r\n\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if !entries[0].Enabled || entries[0].Name != "one" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Enabled || entries[1].URL != "https://www.youtube.com/@two" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	enabled, err := store.Enabled()
	if err != nil {
		t.Fatalf("Enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0] != "https://www.youtube.com/@one" {
		t.Fatalf("unexpected enabled urls %v", enabled)
	}
}

func TestWriteNormalizesLineEndings(t *testing.T) {
	store, path := newStore(t)
	if err := os.WriteFile(path, []byte("# list\r\nhttps://www.youtube.com/@one\r\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Add("https://www.youtube.com/@two"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "\r") {
		t.Fatalf("expected \\n line endings, got %q", data)
	}
	if string(data) != "# list\nhttps://www.youtube.com/@one\nhttps://www.youtube.com/@two\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestRemoveDeletesBothForms(t *testing.T) {
	store, path := newStore(t)
	content := "https://www.youtube.com/@a\n# https://www.youtube.com/@a\nhttps://www.youtube.com/@b\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Remove("https://www.youtube.com/@a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "https://www.youtube.com/@b\n" {
		t.Fatalf("unexpected content after remove %q", data)
	}
	if err := store.Remove("https://www.youtube.com/@missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleMissingEntry(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Toggle("https://www.youtube.com/@none"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRejectsInvalidURL(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Add("has space"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestConcurrentAddsKeepEveryEntry(t *testing.T) {
	store, _ := newStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			other := channels.NewStore(store.Path())
			if err := other.Add("https://www.youtube.com/@c" + string(rune('a'+i))); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(i)
	}
	wg.Wait()
	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(entries))
	}
}

func TestDisabledEntryWithStrayWhitespace(t *testing.T) {
	for _, content := range []string{
		"# https://www.youtube.com/@x \n",
		"  # https://www.youtube.com/@x\n",
		"\t# https://www.youtube.com/@x\t\n",
	} {
		store, path := newStore(t)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		entries, err := store.List()
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(entries) != 1 || entries[0].Enabled || entries[0].URL != "https://www.youtube.com/@x" {
			t.Fatalf("content %q: unexpected entries %+v", content, entries)
		}
		if err := store.Add("https://www.youtube.com/@x"); !errors.Is(err, services.ErrDuplicateChannel) {
			t.Fatalf("content %q: expected ErrDuplicateChannel, got %v", content, err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != content {
			t.Fatalf("rejected add changed file: %q", data)
		}
	}
}

func TestToggleKeepsUntouchedWhitespace(t *testing.T) {
	store, path := newStore(t)
	original := "  https://www.youtube.com/@a\nhttps://www.youtube.com/@b\n\t# keep me  \n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.Toggle("https://www.youtube.com/@b"); err != nil {
			t.Fatalf("Toggle: %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != original {
		t.Fatalf("toggle rewrote untouched lines:\n got %q\nwant %q", data, original)
	}
	if err := store.Add("https://www.youtube.com/@c"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != original+"https://www.youtube.com/@c\n" {
		t.Fatalf("add rewrote untouched lines: %q", data)
	}
}

func TestCreatedHeaderHasNoEntries(t *testing.T) {
	store, path := newStore(t)
	if err := store.Add("https://www.youtube.com/@first"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, _ := os.ReadFile(path)
	content := string(data)
	for _, want := range []string{
		"# Y-Data-House 채널 목록\n",
		"# 한 줄에 하나씩 YouTube 채널 URL을 입력하세요\n",
		"# 아래에 다운로드할 채널 URL을 추가하세요:\n\nhttps://www.youtube.com/@first\n",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://www.youtube.com/@first" {
		t.Fatalf("header examples parsed as entries: %+v", entries)
	}
}
