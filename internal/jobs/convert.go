package jobs

import (
	"context"
	"path/filepath"
	"strings"

	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/paths"
	"ydhouse/internal/services"
	"ydhouse/internal/supervisor"
)

const (
	defaultConvertQuality = "720p"
	defaultConvertCodec   = "h264"
)

// ConvertOptions describes one transcode request.
type ConvertOptions struct {
	// Path is the video path relative to the project root.
	Path    string `json:"path"`
	Quality string `json:"quality,omitempty"`
	Codec   string `json:"codec,omitempty"`
	Backup  bool   `json:"backup"`
}

// StartConversion transcodes one vault video through the converter worker.
func (s *Service) StartConversion(ctx context.Context, opts ConvertOptions) (*supervisor.Job, error) {
	full, err := s.projectFile(opts.Path, "convert")
	if err != nil {
		return nil, err
	}
	if err := s.requireWorker(); err != nil {
		return nil, err
	}

	quality := strings.TrimSpace(opts.Quality)
	if quality == "" {
		quality = defaultConvertQuality
	}
	codec := strings.TrimSpace(opts.Codec)
	if codec == "" {
		codec = defaultConvertCodec
	}
	backup := "--no-backup"
	if opts.Backup {
		backup = "--backup"
	}
	args := []string{"-m", "ydh", "convert-single", full, "--quality", quality, "--codec", codec, backup}

	inv, err := s.invocation(args, nil)
	if err != nil {
		return nil, err
	}
	return s.runner.Spawn(ctx, inv, supervisor.SpawnOptions{
		Topic:        events.TopicConversion,
		JobTag:       TagConversion,
		Grammar:      grammar.Convert(),
		StartMessage: "🎬 변환을 시작합니다 (" + quality + ", " + codec + ")",
		CurrentItem:  filepath.ToSlash(strings.TrimSpace(opts.Path)),
	})
}

// CancelConversion stops the running conversion.
func (s *Service) CancelConversion(ctx context.Context) error {
	return s.cancel(ctx, TagConversion)
}

// ConversionRunning reports whether a conversion is in flight.
func (s *Service) ConversionRunning() bool {
	return s.runner.Running(TagConversion)
}

// projectFile resolves a root-relative path and checks the file exists.
func (s *Service) projectFile(rel, operation string) (string, error) {
	rel, err := requireText(rel, "jobs", operation, "video path")
	if err != nil {
		return "", err
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", services.Wrap(services.ErrPathEscape, "jobs", operation, rel+" is outside the project root", nil)
	}
	full := filepath.Join(s.layout.Root, local)
	if err := paths.Require(full, "video file"); err != nil {
		return "", err
	}
	return full, nil
}
