package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ydhouse/internal/logging"
	"ydhouse/internal/names"
	"ydhouse/internal/paths"
	"ydhouse/internal/services"
)

const (
	videoFileName    = "video.mp4"
	captionsMarkdown = "captions.md"
	captionsText     = "captions.txt"
	unknownTitle     = "Unknown Title"
	unknownChannel   = "Unknown Channel"
)

// Record describes one vault directory that contains a video.
type Record struct {
	VideoPath       string   `json:"video_path"`
	CaptionsPath    string   `json:"captions_path"`
	Title           string   `json:"title"`
	Channel         string   `json:"channel"`
	UploadDate      string   `json:"upload_date,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	DurationSeconds *int64   `json:"duration_seconds,omitempty"`
	ViewCount       *int64   `json:"view_count,omitempty"`
	Topics          []string `json:"topic,omitempty"`
	VideoID         string   `json:"video_id,omitempty"`
	SourceURL       string   `json:"source_url,omitempty"`
	Excerpt         string   `json:"excerpt,omitempty"`
}

// ChannelGroup collects the records of one channel.
type ChannelGroup struct {
	Channel string   `json:"channel"`
	Videos  []Record `json:"videos"`
}

// Scanner walks the vault of a project layout.
type Scanner struct {
	layout paths.Layout
	logger *slog.Logger
}

// NewScanner constructs a scanner for layout.
func NewScanner(layout paths.Layout, logger *slog.Logger) *Scanner {
	return &Scanner{layout: layout, logger: logging.NewComponentLogger(logger, "vault")}
}

// Scan returns every record under the videos directory with paths relative to
// the project root.
func (s *Scanner) Scan() ([]Record, error) {
	root := s.layout.VideosDir()
	if err := paths.Require(root, "video directory"); err != nil {
		return nil, err
	}

	var records []Record
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}
		if d.IsDir() || d.Name() != videoFileName {
			return nil
		}
		records = append(records, s.record(filepath.Dir(path)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Scanner) record(dir string) Record {
	mdPath := filepath.Join(dir, captionsMarkdown)
	txtPath := filepath.Join(dir, captionsText)

	var meta Metadata
	if data, err := os.ReadFile(mdPath); err == nil {
		parsed, parseErr := ParseMarkdownMetadata(string(data))
		if parseErr != nil {
			s.logger.Debug("caption frontmatter unreadable; using path defaults",
				logging.String("path", s.layout.Rel(mdPath)),
				logging.Error(parseErr),
			)
		}
		meta = parsed
	} else if !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("caption read failed",
			logging.String("path", s.layout.Rel(mdPath)),
			logging.Error(err),
		)
	}

	captions := mdPath
	if fileExists(txtPath) {
		captions = txtPath
	}

	rec := Record{
		VideoPath:       s.layout.Rel(filepath.Join(dir, videoFileName)),
		CaptionsPath:    s.layout.Rel(captions),
		Title:           meta.Title,
		Channel:         channelFromPath(s.layout.VideosDir(), dir),
		UploadDate:      meta.UploadDate,
		Duration:        meta.Duration,
		DurationSeconds: meta.DurationSeconds,
		ViewCount:       meta.ViewCount,
		Topics:          meta.Topics,
		VideoID:         meta.VideoID,
		SourceURL:       meta.SourceURL,
		Excerpt:         meta.Excerpt,
	}
	if rec.Title == "" {
		rec.Title = titleFromPath(dir)
	}
	if rec.Channel == "" {
		rec.Channel = meta.Channel
	}
	if rec.Channel == "" {
		rec.Channel = unknownChannel
	}
	return rec
}

// channelFromPath returns the decoded component directly under videosDir.
func channelFromPath(videosDir, dir string) string {
	rel, err := filepath.Rel(videosDir, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return names.Decode(first)
}

func titleFromPath(dir string) string {
	name := filepath.Base(dir)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return unknownTitle
	}
	return name
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Group buckets records by channel, sorted by channel name.
func Group(records []Record) []ChannelGroup {
	byChannel := make(map[string][]Record)
	for _, rec := range records {
		byChannel[rec.Channel] = append(byChannel[rec.Channel], rec)
	}
	groups := make([]ChannelGroup, 0, len(byChannel))
	for channel, videos := range byChannel {
		groups = append(groups, ChannelGroup{Channel: channel, Videos: videos})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Channel < groups[j].Channel })
	return groups
}

// EmbeddableChannels lists the channel directory names under the videos directory.
func EmbeddableChannels(layout paths.Layout) ([]string, error) {
	entries, err := os.ReadDir(layout.VideosDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "vault", "list channels", "video directory missing", err)
		}
		return nil, fmt.Errorf("read video directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
