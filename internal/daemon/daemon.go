package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ydhouse/internal/api"
	"ydhouse/internal/config"
	"ydhouse/internal/events"
	"ydhouse/internal/history"
	"ydhouse/internal/jobs"
	"ydhouse/internal/logging"
	"ydhouse/internal/mediaserver"
	"ydhouse/internal/paths"
	"ydhouse/internal/status"
	"ydhouse/internal/supervisor"
	"ydhouse/internal/vault"
)

const (
	// LockFileName guards against a second daemon on the same state directory.
	LockFileName = "ydhoused.lock"
	// PIDFileName records the daemon's process id for forced stops.
	PIDFileName = "ydhoused.pid"

	shutdownTimeout = 10 * time.Second
)

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	jobOptions   []jobs.Option
	supOptions   []supervisor.Option
	mediaOptions *mediaserver.Options
}

// WithJobOptions forwards options to the job façade.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(o *options) { o.jobOptions = append(o.jobOptions, opts...) }
}

// WithSupervisorOptions forwards options to the process supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(o *options) { o.supOptions = append(o.supOptions, opts...) }
}

// WithMediaOptions overrides the media server options derived from config.
func WithMediaOptions(opts mediaserver.Options) Option {
	return func(o *options) { o.mediaOptions = &opts }
}

// Daemon holds the Core Services and the API server.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	layout paths.Layout
	logHub *logging.StreamHub

	bus     *events.Bus
	history *history.Store
	sup     *supervisor.Supervisor
	jobs    *jobs.Service
	status  *status.Aggregator
	media   *mediaserver.Server
	scanner *vault.Scanner

	lockPath string
	pidPath  string
	lock     *flock.Flock
	api      *apiServer

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs the Core Services for layout. The history store is opened
// under the configured state directory.
func New(cfg *config.Config, layout paths.Layout, logger *slog.Logger, logHub *logging.StreamHub, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	bus := events.NewBus(cfg.Events.SubscriberBuffer)
	supOpts := append([]supervisor.Option{
		supervisor.WithSettings(cfg),
		supervisor.WithRecorder(store),
		supervisor.WithLogger(logger),
	}, o.supOptions...)
	sup := supervisor.New(bus, supOpts...)

	jobOpts := append([]jobs.Option{jobs.WithLogger(logger)}, o.jobOptions...)
	svc := jobs.New(cfg, layout, sup, bus, jobOpts...)

	mediaOpts := mediaserver.OptionsFromConfig(cfg.MediaServer)
	if o.mediaOptions != nil {
		mediaOpts = *o.mediaOptions
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		layout:   layout,
		logHub:   logHub,
		bus:      bus,
		history:  store,
		sup:      sup,
		jobs:     svc,
		status:   status.New(layout, svc.Channels(), store, sup, logger),
		media:    mediaserver.New(layout.Vault(), mediaOpts, logger),
		scanner:  vault.NewScanner(layout, logger),
		lockPath: lockPath,
		pidPath:  filepath.Join(cfg.Paths.StateDir, PIDFileName),
		lock:     flock.New(lockPath),
		stopCh:   make(chan struct{}),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ydhouse daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}
	if err := os.WriteFile(d.pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		logging.WarnWithContext(d.logger, "write pid file failed", "pid_write_failed",
			logging.Error(err),
			logging.String("path", d.pidPath),
		)
	}

	d.running.Store(true)
	d.logger.Info("ydhouse daemon started",
		logging.String("lock", d.lockPath),
		logging.String("project_root", d.layout.Root),
		logging.String("api", d.APIAddr()),
	)
	return nil
}

// Stop cancels running jobs, stops the media server and the API, and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.sup.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("jobs did not stop in time", logging.Error(err))
	}
	if err := d.media.Stop(shutdownCtx); err != nil {
		d.logger.Warn("media server stop failed", logging.Error(err))
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = os.Remove(d.pidPath)
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("ydhouse daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.bus.Close()
	return d.history.Close()
}

// RequestStop asks the process running the daemon to shut down.
func (d *Daemon) RequestStop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// StopRequested is closed after RequestStop.
func (d *Daemon) StopRequested() <-chan struct{} {
	return d.stopCh
}

// APIAddr returns the bound API address, or "" before Start.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// lifetime is the context background services started on behalf of a
// request are bound to.
func (d *Daemon) lifetime() context.Context {
	if ctx := d.ctx; ctx != nil {
		return ctx
	}
	return context.Background()
}

// Jobs returns the job façade.
func (d *Daemon) Jobs() *jobs.Service { return d.jobs }

// Bus returns the progress event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Media returns the range media server.
func (d *Daemon) Media() *mediaserver.Server { return d.media }

// History returns the run history store.
func (d *Daemon) History() *history.Store { return d.history }

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub { return d.logHub }

// Status returns daemon runtime information.
func (d *Daemon) Status() api.DaemonStatus {
	tags := d.sup.Tags()
	if tags == nil {
		tags = []string{}
	}
	return api.DaemonStatus{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		ProjectRoot: d.layout.Root,
		LockPath:    d.lockPath,
		PIDPath:     d.pidPath,
		HistoryPath: d.history.Path(),
		RunningJobs: tags,
		Dropped:     d.bus.Dropped(),
	}
}
