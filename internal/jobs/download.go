package jobs

import (
	"context"
	"fmt"
	"strings"

	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
	"ydhouse/internal/supervisor"
)

// DownloadOptions selects the batch download mode.
type DownloadOptions struct {
	// Quality is passed as YDH_VIDEO_QUALITY when set.
	Quality string `json:"quality,omitempty"`
	// FullScan re-checks every video and raises timeouts and retries.
	FullScan bool `json:"full_scan,omitempty"`
}

// StartDownload launches the batch downloader over every enabled channel.
func (s *Service) StartDownload(ctx context.Context, opts DownloadOptions) (*supervisor.Job, error) {
	enabled, err := s.channels.Enabled()
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return nil, services.Wrap(services.ErrValidation, "jobs", "download", NoEnabledChannelsMessage, nil)
	}
	if err := s.requireWorker(); err != nil {
		return nil, err
	}

	quality := strings.TrimSpace(opts.Quality)
	if quality == "" && !opts.FullScan {
		quality = strings.TrimSpace(s.cfg.Downloader.DefaultQuality)
	}
	args := []string{"-u", "-m", "ydh", "batch"}
	message := "🚀 모든 활성화된 채널의 배치 다운로드를 시작합니다..."
	if opts.FullScan {
		args = append(args, "--full-scan")
		message = "🔍 전체 무결성 검사를 시작합니다. 모든 영상을 확인하여 누락된 영상을 복구합니다..."
	}
	if quality != "" {
		message = fmt.Sprintf("%s (품질: %s)", message, quality)
	}

	inv, err := s.invocation(args, s.downloaderEnv(opts.FullScan, quality))
	if err != nil {
		return nil, err
	}
	job, err := s.runner.Spawn(ctx, inv, supervisor.SpawnOptions{
		Topic:        events.TopicDownload,
		JobTag:       TagDownload,
		Grammar:      grammar.Download(),
		StagingDir:   s.layout.DownloadsDir(),
		StartMessage: message,
		CurrentItem:  "배치 다운로드 시작",
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("download started",
		logging.Int("enabled_channels", len(enabled)),
		logging.Bool("full_scan", opts.FullScan),
		logging.String("quality", quality),
		logging.String(logging.FieldRunID, job.RunID()),
	)
	return job, nil
}

// StartIngest downloads a single channel URL, enabled or not.
func (s *Service) StartIngest(ctx context.Context, url string) (*supervisor.Job, error) {
	url, err := requireText(url, "jobs", "ingest", "channel url")
	if err != nil {
		return nil, err
	}
	if err := s.requireWorker(); err != nil {
		return nil, err
	}
	inv, err := s.invocation([]string{"-u", "-m", "ydh", "ingest", url}, s.downloaderEnv(false, ""))
	if err != nil {
		return nil, err
	}
	return s.runner.Spawn(ctx, inv, supervisor.SpawnOptions{
		Topic:        events.TopicDownload,
		JobTag:       TagDownload,
		Grammar:      grammar.Download(),
		StagingDir:   s.layout.DownloadsDir(),
		StartMessage: "📥 채널 다운로드를 시작합니다: " + url,
		CurrentItem:  url,
	})
}

// CancelDownload stops the running download and waits for its terminal event.
func (s *Service) CancelDownload(ctx context.Context) error {
	return s.cancel(ctx, TagDownload)
}
