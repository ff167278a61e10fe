package channels

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/gofrs/flock"

	"ydhouse/internal/names"
	"ydhouse/internal/services"
)

// header is written when the list file is created by Add. Example URLs are
// indented so they parse as comments rather than disabled entries.
var header = []string{
	"# Y-Data-House 채널 목록",
	"# 한 줄에 하나씩 YouTube 채널 URL을 입력하세요",
	"# '#'로 시작하는 줄은 주석으로 처리됩니다",
	"#",
	"# 예시:",
	"#   https://www.youtube.com/@리베라루츠대학",
	"#   https://www.youtube.com/@채널명2",
	"#",
	"# 아래에 다운로드할 채널 URL을 추가하세요:",
	"",
}

// Entry is one channel line.
type Entry struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Store manages a channel list file.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore returns a store for the list at path.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the list file location.
func (s *Store) Path() string {
	return s.path
}

// List returns entries in file order. A missing file yields no entries.
func (s *Store) List() ([]Entry, error) {
	lines, _, err := s.read()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		if l.kind != lineEnabled && l.kind != lineDisabled {
			continue
		}
		entries = append(entries, Entry{
			URL:     l.url,
			Name:    names.ChannelFromURL(l.url),
			Enabled: l.kind == lineEnabled,
		})
	}
	return entries, nil
}

// Enabled returns the URLs of enabled entries.
func (s *Store) Enabled() ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, e := range entries {
		if e.Enabled {
			urls = append(urls, e.URL)
		}
	}
	return urls, nil
}

// Add appends url as an enabled entry, creating the file with a header when absent.
func (s *Store) Add(url string) error {
	url = strings.TrimSpace(url)
	if url == "" || strings.IndexFunc(url, unicode.IsSpace) >= 0 {
		return services.Wrap(services.ErrValidation, "channels", "add", fmt.Sprintf("invalid channel url %q", url), nil)
	}
	return s.mutate(func(lines []line, exists bool) ([]line, error) {
		if !exists {
			for _, h := range header {
				lines = append(lines, classify(h))
			}
		}
		if findURL(lines, url) >= 0 {
			return nil, services.Wrap(services.ErrDuplicateChannel, "channels", "add", url, nil)
		}
		return append(lines, line{kind: lineEnabled, raw: url, url: url, dirty: true}), nil
	})
}

// Remove deletes every line whose URL matches, enabled or disabled.
func (s *Store) Remove(url string) error {
	url = strings.TrimSpace(url)
	return s.mutate(func(lines []line, _ bool) ([]line, error) {
		kept := lines[:0:0]
		removed := false
		for _, l := range lines {
			if isEntry(l) && l.url == url {
				removed = true
				continue
			}
			kept = append(kept, l)
		}
		if !removed {
			return nil, services.Wrap(services.ErrNotFound, "channels", "remove", url, nil)
		}
		return kept, nil
	})
}

// Toggle flips the enabled state of the entry for url and returns the new state.
func (s *Store) Toggle(url string) (bool, error) {
	url = strings.TrimSpace(url)
	var enabled bool
	err := s.mutate(func(lines []line, _ bool) ([]line, error) {
		idx := findURL(lines, url)
		if idx < 0 {
			return nil, services.Wrap(services.ErrNotFound, "channels", "toggle", url, nil)
		}
		if lines[idx].kind == lineEnabled {
			lines[idx].kind = lineDisabled
		} else {
			lines[idx].kind = lineEnabled
		}
		lines[idx].dirty = true
		enabled = lines[idx].kind == lineEnabled
		return lines, nil
	})
	return enabled, err
}

func (s *Store) mutate(fn func(lines []line, exists bool) ([]line, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create channel list directory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock channel list: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	lines, exists, err := s.read()
	if err != nil {
		return err
	}
	updated, err := fn(lines, exists)
	if err != nil {
		return err
	}
	return s.write(serialize(updated))
}

func (s *Store) read() ([]line, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read channel list: %w", err)
	}
	return parseLines(string(data)), true, nil
}

func (s *Store) write(content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".channels-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp channel list: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write channel list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close channel list: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace channel list: %w", err)
	}
	return nil
}

func isEntry(l line) bool {
	return l.kind == lineEnabled || l.kind == lineDisabled
}

func findURL(lines []line, url string) int {
	for i, l := range lines {
		if isEntry(l) && l.url == url {
			return i
		}
	}
	return -1
}
