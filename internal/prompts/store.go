package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gofrs/flock"

	"ydhouse/internal/services"
)

const (
	activeFile    = "active.txt"
	versionPrefix = "prompt_v"
	versionSuffix = ".json"
	maxNameRunes  = 50
	fallbackName  = "unknown_channel"
)

// Document is one prompt version. Fields beyond the stamped metadata are
// owned by the answering worker and kept as-is.
type Document map[string]any

// Version summarizes one stored prompt version.
type Version struct {
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	Persona       string `json:"persona"`
	AutoGenerated bool   `json:"auto_generated"`
	Active        bool   `json:"active"`
	Path          string `json:"file_path"`
}

// Summary describes the active prompt of one channel.
type Summary struct {
	Name          string   `json:"name"`
	SafeName      string   `json:"safe_name"`
	ActiveVersion int      `json:"active_version"`
	TotalVersions int      `json:"total_versions"`
	Persona       string   `json:"persona"`
	AutoGenerated bool     `json:"auto_generated"`
	LastModified  string   `json:"last_modified"`
	Expertise     []string `json:"expertise"`
}

// Report is the prompt coverage across the vault's channels.
type Report struct {
	Available    int       `json:"total_available_channels"`
	WithPrompts  []Summary `json:"channels_detail"`
	Missing      []string  `json:"missing_channels"`
	CoverageRate float64   `json:"coverage_rate"`
}

// Store reads and writes prompt versions under one directory.
type Store struct {
	dir  string
	now  func() time.Time
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now, lock: flock.New(filepath.Join(filepath.Dir(dir), ".prompts.lock"))}
}

// WithClock replaces the metadata timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Dir returns the prompts root.
func (s *Store) Dir() string {
	return s.dir
}

// Sanitize maps a channel name onto its directory name: runs of characters
// other than letters, digits, '-' and '_' collapse to one '_', edges are
// trimmed and the result is capped at 50 runes.
func Sanitize(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			if r == '_' {
				if underscore {
					continue
				}
				underscore = true
			} else {
				underscore = false
			}
			b.WriteRune(r)
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if runes := []rune(out); len(runes) > maxNameRunes {
		out = strings.TrimRight(string(runes[:maxNameRunes]), "_")
	}
	if out == "" {
		return fallbackName
	}
	return out
}

// Active returns the active document of channel, or an empty document when
// the channel has no prompt yet.
func (s *Store) Active(channel string) (Document, error) {
	dir := s.channelDir(channel)
	version := readActive(dir)
	doc, err := readDocument(versionPath(dir, version))
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	return doc, err
}

// Save stores doc as the next version of channel and makes it active.
func (s *Store) Save(channel string, doc Document) (int, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return 0, services.Wrap(services.ErrValidation, "prompts", "save", "channel required", nil)
	}
	if doc == nil {
		doc = Document{}
	}
	var version int
	err := s.withLock(func() error {
		dir := s.channelDir(channel)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prompt directory: %w", err)
		}
		versions, err := listVersions(dir)
		if err != nil {
			return err
		}
		version = 1
		if len(versions) > 0 {
			version = versions[len(versions)-1] + 1
		}
		stamp := s.now().Format(time.RFC3339)
		doc["version"] = version
		doc["channel_name"] = channel
		doc["created_at"] = stamp
		doc["last_modified"] = stamp
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode prompt: %w", err)
		}
		if err := writeAtomic(versionPath(dir, version), data); err != nil {
			return err
		}
		return writeAtomic(filepath.Join(dir, activeFile), []byte(strconv.Itoa(version)))
	})
	return version, err
}

// Versions lists the stored versions of channel, newest first.
func (s *Store) Versions(channel string) ([]Version, error) {
	dir := s.channelDir(channel)
	numbers, err := listVersions(dir)
	if err != nil {
		return nil, err
	}
	active := readActive(dir)
	out := make([]Version, 0, len(numbers))
	for i := len(numbers) - 1; i >= 0; i-- {
		path := versionPath(dir, numbers[i])
		doc, err := readDocument(path)
		if err != nil {
			continue
		}
		out = append(out, Version{
			Version:       numbers[i],
			CreatedAt:     doc.text("created_at"),
			Persona:       truncate(doc.text("persona"), 100),
			AutoGenerated: doc.flag("auto_generated"),
			Active:        numbers[i] == active,
			Path:          path,
		})
	}
	return out, nil
}

// SetActive points channel at an existing version.
func (s *Store) SetActive(channel string, version int) error {
	return s.withLock(func() error {
		dir := s.channelDir(channel)
		if _, err := os.Stat(versionPath(dir, version)); err != nil {
			return services.Wrap(services.ErrNotFound, "prompts", "activate", fmt.Sprintf("%s v%d", channel, version), err)
		}
		return writeAtomic(filepath.Join(dir, activeFile), []byte(strconv.Itoa(version)))
	})
}

// Delete removes one version. Deleting the active version activates the
// highest remaining one.
func (s *Store) Delete(channel string, version int) error {
	return s.withLock(func() error {
		dir := s.channelDir(channel)
		path := versionPath(dir, version)
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return services.Wrap(services.ErrNotFound, "prompts", "delete", fmt.Sprintf("%s v%d", channel, version), err)
			}
			return fmt.Errorf("remove prompt version: %w", err)
		}
		if readActive(dir) != version {
			return nil
		}
		remaining, err := listVersions(dir)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := os.Remove(filepath.Join(dir, activeFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove active marker: %w", err)
			}
			return nil
		}
		return writeAtomic(filepath.Join(dir, activeFile), []byte(strconv.Itoa(remaining[len(remaining)-1])))
	})
}

// Summaries describes every channel with at least one stored version, most
// recently modified first.
func (s *Store) Summaries() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prompts directory: %w", err)
	}
	var out []Summary
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.dir, entry.Name())
		numbers, err := listVersions(dir)
		if err != nil || len(numbers) == 0 {
			continue
		}
		active := readActive(dir)
		doc, err := readDocument(versionPath(dir, active))
		if err != nil {
			continue
		}
		name := doc.text("channel_name")
		if name == "" {
			name = entry.Name()
		}
		expertise := doc.list("expertise_keywords")
		if len(expertise) > 3 {
			expertise = expertise[:3]
		}
		out = append(out, Summary{
			Name:          name,
			SafeName:      entry.Name(),
			ActiveVersion: active,
			TotalVersions: len(numbers),
			Persona:       truncate(doc.text("persona"), 50),
			AutoGenerated: doc.flag("auto_generated"),
			LastModified:  doc.text("last_modified"),
			Expertise:     expertise,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified > out[j].LastModified })
	return out, nil
}

// Status compares the stored prompts with the channels that could have one.
func (s *Store) Status(available []string) (Report, error) {
	summaries, err := s.Summaries()
	if err != nil {
		return Report{}, err
	}
	covered := make(map[string]bool, len(summaries))
	for _, sum := range summaries {
		covered[sum.Name] = true
		covered[sum.SafeName] = true
	}
	report := Report{Available: len(available), WithPrompts: summaries}
	for _, channel := range available {
		if !covered[channel] && !covered[Sanitize(channel)] {
			report.Missing = append(report.Missing, channel)
		}
	}
	if len(available) > 0 {
		report.CoverageRate = float64(len(available)-len(report.Missing)) / float64(len(available))
	}
	return report, nil
}

func (s *Store) channelDir(channel string) string {
	return filepath.Join(s.dir, Sanitize(channel))
}

func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create prompts directory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock prompts: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// readActive falls back to version 1 when the marker is missing or garbled.
func readActive(dir string) int {
	data, err := os.ReadFile(filepath.Join(dir, activeFile))
	if err != nil {
		return 1
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || version < 1 {
		return 1
	}
	return version
}

func listVersions(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prompt directory: %w", err)
	}
	var out []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, versionPrefix) || !strings.HasSuffix(name, versionSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, versionPrefix), versionSuffix))
		if err != nil || n < 1 {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func versionPath(dir string, version int) string {
	return filepath.Join(dir, versionPrefix+strconv.Itoa(version)+versionSuffix)
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "prompts", "read", filepath.Base(path), err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prompt-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp prompt file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write prompt file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close prompt file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace prompt file: %w", err)
	}
	return nil
}

func (d Document) text(key string) string {
	value, _ := d[key].(string)
	return value
}

func (d Document) flag(key string) bool {
	value, _ := d[key].(bool)
	return value
}

func (d Document) list(key string) []string {
	raw, _ := d[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
