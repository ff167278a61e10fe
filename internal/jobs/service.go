package jobs

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"ydhouse/internal/channels"
	"ydhouse/internal/config"
	"ydhouse/internal/logging"
	"ydhouse/internal/paths"
	"ydhouse/internal/prompts"
	"ydhouse/internal/services"
	"ydhouse/internal/supervisor"
	"ydhouse/internal/vault"
)

// Job tags. At most one job per tag is alive at a time.
const (
	TagDownload   = "download"
	TagEmbedding  = "embedding"
	TagIntegrity  = "integrity"
	TagConversion = "conversion"
	TagRAG        = "rag"
)

// NoEnabledChannelsMessage is reported when a download is requested while
// every channel is disabled.
const NoEnabledChannelsMessage = "활성화된 채널이 없습니다"

// Runner is the slice of the supervisor the façade depends on.
type Runner interface {
	Spawn(ctx context.Context, inv supervisor.Invocation, opts supervisor.SpawnOptions) (*supervisor.Job, error)
	Cancel(ctx context.Context, tag string) error
	Await(ctx context.Context, tag string) (supervisor.Result, error)
	Running(tag string) bool
	RunCaptured(ctx context.Context, inv supervisor.Invocation, onStdout supervisor.LineFunc) (supervisor.Captured, error)
}

// Opener hands a file to the desktop's default application.
type Opener func(ctx context.Context, path string) error

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEnviron replaces the parent environment source (os.Environ).
func WithEnviron(environ func() []string) Option {
	return func(s *Service) {
		if environ != nil {
			s.environ = environ
		}
	}
}

// WithOpener replaces the system player launcher.
func WithOpener(opener Opener) Option {
	return func(s *Service) {
		if opener != nil {
			s.opener = opener
		}
	}
}

// WithChannels shares an existing channel store.
func WithChannels(store *channels.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.channels = store
		}
	}
}

// WithClock overrides time.Now for one-shot event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service maps user intents onto supervised worker runs.
type Service struct {
	cfg      *config.Config
	layout   paths.Layout
	runner   Runner
	pub      supervisor.Publisher
	channels *channels.Store
	prompts  *prompts.Store
	logger   *slog.Logger
	environ  func() []string
	opener   Opener
	now      func() time.Time

	ragMu    sync.Mutex
	promptMu sync.Mutex
}

// New constructs the façade. pub receives the events of one-shot question
// answering; streamed jobs publish through runner.
func New(cfg *config.Config, layout paths.Layout, runner Runner, pub supervisor.Publisher, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		layout:   layout,
		runner:   runner,
		pub:      pub,
		channels: channels.NewStore(layout.ChannelsFile()),
		prompts:  prompts.NewStore(layout.PromptsDir()),
		logger:   logging.NewNop(),
		environ:  os.Environ,
		opener:   openWithSystem,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "jobs")
	return s
}

// Layout returns the project layout the service resolves workers against.
func (s *Service) Layout() paths.Layout {
	return s.layout
}

// Channels returns the channel list store.
func (s *Service) Channels() *channels.Store {
	return s.channels
}

// Prompts returns the per-channel prompt store.
func (s *Service) Prompts() *prompts.Store {
	return s.prompts
}

// Wait blocks until the job tagged tag finishes.
func (s *Service) Wait(ctx context.Context, tag string) (supervisor.Result, error) {
	return s.runner.Await(ctx, tag)
}

// Running reports whether a job with tag is alive.
func (s *Service) Running(tag string) bool {
	return s.runner.Running(tag)
}

// EmbeddableChannels lists channel directories that can be embedded.
func (s *Service) EmbeddableChannels() ([]string, error) {
	return vault.EmbeddableChannels(s.layout)
}

// invocation builds an interpreter call rooted at the project directory.
func (s *Service) invocation(args []string, overrides map[string]string) (supervisor.Invocation, error) {
	env, err := s.environment(overrides)
	if err != nil {
		return supervisor.Invocation{}, err
	}
	return supervisor.Invocation{
		Program: s.layout.Interpreter(),
		Args:    args,
		Dir:     s.layout.Root,
		Env:     env,
	}, nil
}

// requireWorker checks the interpreter and any scripts before first use.
func (s *Service) requireWorker(scripts ...string) error {
	if err := paths.Require(s.layout.Interpreter(), "python interpreter"); err != nil {
		return err
	}
	for _, script := range scripts {
		if err := paths.Require(script, "worker script"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) cancel(ctx context.Context, tag string) error {
	if err := s.runner.Cancel(ctx, tag); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("job cancelled",
		logging.String(logging.FieldJobTag, tag),
		logging.String(logging.FieldEventType, "job_cancel_requested"),
	)
	return nil
}

func requireText(value, component, operation, what string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, component, operation, what+" required", nil)
	}
	return trimmed, nil
}
