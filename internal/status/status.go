package status

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ydhouse/internal/channels"
	"ydhouse/internal/logging"
	"ydhouse/internal/paths"
	"ydhouse/internal/vault"
)

// Vector index states.
const (
	VectorDBActive   = "active"
	VectorDBInactive = "inactive"
)

const bytesPerMB = 1024 * 1024

// AppStatus is the dashboard summary.
type AppStatus struct {
	TotalVideos    int        `json:"total_videos"`
	TotalChannels  int        `json:"total_channels"`
	VaultSizeMB    float64    `json:"vault_size_mb"`
	VectorDBStatus string     `json:"vector_db_status"`
	LastDownload   *time.Time `json:"last_download,omitempty"`
	RunningJobs    []string   `json:"running_jobs"`
	FreeSpaceMB    *float64   `json:"free_space_mb,omitempty"`
}

// LastRunSource reports the finish time of the last successful run of a tag.
type LastRunSource interface {
	LastSuccessAt(ctx context.Context, tag string) (*time.Time, error)
}

// JobLister reports running job tags.
type JobLister interface {
	Tags() []string
}

// Aggregator collects AppStatus from the project's stores.
type Aggregator struct {
	layout   paths.Layout
	scanner  *vault.Scanner
	channels *channels.Store
	history  LastRunSource
	jobs     JobLister
	logger   *slog.Logger
}

// New constructs an aggregator. history and jobs may be nil.
func New(layout paths.Layout, store *channels.Store, history LastRunSource, jobs JobLister, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if store == nil {
		store = channels.NewStore(layout.ChannelsFile())
	}
	return &Aggregator{
		layout:   layout,
		scanner:  vault.NewScanner(layout, logger),
		channels: store,
		history:  history,
		jobs:     jobs,
		logger:   logging.NewComponentLogger(logger, "status"),
	}
}

// Collect builds the summary. Unreadable sources count as empty and are
// logged; only cancellation is returned as an error.
func (a *Aggregator) Collect(ctx context.Context) (AppStatus, error) {
	out := AppStatus{VectorDBStatus: VectorDBInactive, RunningJobs: []string{}}

	records, err := a.scanner.Scan()
	if err != nil {
		a.warn("scan vault failed", err)
	}
	out.TotalVideos = len(records)

	entries, err := a.channels.List()
	if err != nil {
		a.warn("read channel list failed", err)
	}
	out.TotalChannels = len(entries)

	if err := ctx.Err(); err != nil {
		return AppStatus{}, err
	}
	size, err := DirSize(ctx, a.layout.Vault())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AppStatus{}, ctxErr
		}
		a.warn("measure vault failed", err)
	}
	out.VaultSizeMB = float64(size) / bytesPerMB

	if info, err := os.Stat(a.layout.ChromaDir()); err == nil && info.IsDir() {
		out.VectorDBStatus = VectorDBActive
	}

	if a.history != nil {
		last, err := a.history.LastSuccessAt(ctx, "download")
		if err != nil {
			a.warn("read last download failed", err)
		}
		out.LastDownload = last
	}
	if a.jobs != nil {
		out.RunningJobs = append(out.RunningJobs, a.jobs.Tags()...)
	}
	if free, ok := freeBytes(a.layout.Root); ok {
		mb := float64(free) / bytesPerMB
		out.FreeSpaceMB = &mb
	}
	return out, nil
}

func (a *Aggregator) warn(msg string, err error) {
	logging.WarnWithContext(a.logger, msg, "status_source_unavailable",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "status fields from this source are reported as empty"),
	)
}

// DirSize sums regular file sizes under root. A missing root is zero.
// Symlinks are not followed.
func DirSize(ctx context.Context, root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
