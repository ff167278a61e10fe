package supervisor

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ydhouse/internal/config"
	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

const (
	defaultInactivityTimeout = 15 * time.Second
	defaultPollInterval      = 100 * time.Millisecond
	defaultTerminateGrace    = time.Second
	defaultStderrTail        = 20
)

// Publisher receives job events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// RunInfo describes a job at spawn time.
type RunInfo struct {
	RunID     string
	Tag       string
	Topic     string
	Program   string
	Args      []string
	StartedAt time.Time
}

// Recorder persists job runs. Errors are logged, never surfaced.
type Recorder interface {
	RunStarted(ctx context.Context, info RunInfo) error
	RunFinished(ctx context.Context, result Result) error
}

// SpawnOptions binds a job to its topic, tag and grammar.
type SpawnOptions struct {
	Topic   string
	JobTag  string
	Grammar *grammar.Grammar
	// StagingDir is swept for partial files after cancel or timeout.
	StagingDir string
	// StartMessage is the log line of the starting event.
	StartMessage string
	CurrentItem  string

	InactivityTimeout time.Duration
	PollInterval      time.Duration
	TerminateGrace    time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStarter replaces the process starter.
func WithStarter(starter Starter) Option {
	return func(s *Supervisor) {
		if starter != nil {
			s.starter = starter
		}
	}
}

// WithRecorder attaches a run recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Supervisor) { s.recorder = rec }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSettings applies the [supervisor] config section as job defaults.
func WithSettings(cfg *config.Config) Option {
	return func(s *Supervisor) {
		if cfg == nil {
			return
		}
		if d := cfg.InactivityTimeout(); d > 0 {
			s.inactivity = d
		}
		if d := cfg.PollInterval(); d > 0 {
			s.poll = d
		}
		if d := cfg.TerminateGrace(); d > 0 {
			s.grace = d
		}
		if cfg.Supervisor.StderrTailLines > 0 {
			s.tailLines = cfg.Supervisor.StderrTailLines
		}
	}
}

// Supervisor owns the job registry.
type Supervisor struct {
	publisher Publisher
	starter   Starter
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	inactivity time.Duration
	poll       time.Duration
	grace      time.Duration
	tailLines  int

	mu       sync.Mutex
	active   map[string]*Job
	finished map[string]*Job
}

// New constructs a supervisor publishing to pub.
func New(pub Publisher, opts ...Option) *Supervisor {
	s := &Supervisor{
		publisher:  pub,
		starter:    ExecStarter{},
		logger:     logging.NewNop(),
		now:        time.Now,
		inactivity: defaultInactivityTimeout,
		poll:       defaultPollInterval,
		grace:      defaultTerminateGrace,
		tailLines:  defaultStderrTail,
		active:     make(map[string]*Job),
		finished:   make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "supervisor")
	return s
}

// Spawn starts inv as the job opts.JobTag. A second spawn for a tag that is
// still alive fails with ErrJobAlreadyRunning.
func (s *Supervisor) Spawn(ctx context.Context, inv Invocation, opts SpawnOptions) (*Job, error) {
	tag := strings.TrimSpace(opts.JobTag)
	if tag == "" {
		return nil, services.Wrap(services.ErrValidation, "supervisor", "spawn", "job tag required", nil)
	}
	if opts.Grammar == nil {
		opts.Grammar = &grammar.Grammar{Name: "log"}
	}
	opts = s.withDefaults(opts)

	job := newJob(s, tag, opts, inv)

	s.mu.Lock()
	if _, busy := s.active[tag]; busy {
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrJobAlreadyRunning, "supervisor", "spawn", "job "+tag+" is already running", nil)
	}
	s.active[tag] = job
	s.mu.Unlock()

	jobCtx := services.WithRunID(services.WithJobTag(context.WithoutCancel(ctx), tag), job.runID)
	logger := logging.WithContext(jobCtx, s.logger)

	proc, err := s.starter.Start(jobCtx, inv)
	if err != nil {
		wrapped := services.Wrap(services.ErrSpawnFailed, "supervisor", "spawn", inv.Program, err)
		logger.Error("worker spawn failed",
			logging.String("program", inv.Program),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_spawn_failed"),
			logging.String(logging.FieldErrorHint, "check that the worker interpreter and script exist"),
		)
		job.finishWithoutProcess(jobCtx, wrapped)
		return nil, wrapped
	}
	job.proc = proc
	job.logger = logger

	logger.Info("job started",
		logging.String("program", inv.Program),
		logging.Any("args", inv.Args),
		logging.String(logging.FieldTopic, opts.Topic),
		logging.String(logging.FieldEventType, "job_started"),
	)
	s.recordStarted(jobCtx, job)
	job.publishStarting()
	go job.run(jobCtx)
	return job, nil
}

// Cancel requests termination of the job and waits for it to finish or for
// ctx to end.
func (s *Supervisor) Cancel(ctx context.Context, tag string) error {
	s.mu.Lock()
	job, ok := s.active[tag]
	s.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "supervisor", "cancel", "no running job "+tag, nil)
	}
	job.requestCancel()
	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until the job tagged tag finishes and returns its result. The
// most recent finished run is returned when no job is active.
func (s *Supervisor) Await(ctx context.Context, tag string) (Result, error) {
	s.mu.Lock()
	job, ok := s.active[tag]
	if !ok {
		job, ok = s.finished[tag]
	}
	s.mu.Unlock()
	if !ok {
		return Result{}, services.Wrap(services.ErrNotFound, "supervisor", "await", "no job "+tag, nil)
	}
	return job.Wait(ctx)
}

// Running reports whether a job with tag is registered.
func (s *Supervisor) Running(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[tag]
	return ok
}

// Tags lists registered job tags in sorted order.
func (s *Supervisor) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, 0, len(s.active))
	for tag := range s.active {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Shutdown cancels every running job and waits for them to finish.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.active))
	for _, job := range s.active {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()
	for _, job := range jobs {
		job.requestCancel()
	}
	for _, job := range jobs {
		select {
		case <-job.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Supervisor) withDefaults(opts SpawnOptions) SpawnOptions {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = s.inactivity
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = s.poll
	}
	if opts.TerminateGrace <= 0 {
		opts.TerminateGrace = s.grace
	}
	return opts
}

// release clears the registry slot and remembers the finished job.
func (s *Supervisor) release(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[job.tag] == job {
		delete(s.active, job.tag)
	}
	s.finished[job.tag] = job
}

func (s *Supervisor) recordStarted(ctx context.Context, job *Job) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RunStarted(ctx, job.info()); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "record run start failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		)
	}
}

func (s *Supervisor) recordFinished(ctx context.Context, result Result) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RunFinished(ctx, result); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "record run finish failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		)
	}
}

func newRunID() string {
	return uuid.NewString()
}
