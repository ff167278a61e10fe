package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"ydhouse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The project root is <base>/project; it is not created until NewProject.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ProjectRoot = filepath.Join(base, "project")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithProjectRoot points the config at an existing project tree.
func WithProjectRoot(root string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ProjectRoot = root
	}
}

// WithFastSupervisor shortens supervisor timings so stalled workers fail
// within the test timeout.
func WithFastSupervisor(inactivity time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Supervisor.InactivityTimeoutSeconds = max(1, int(inactivity/time.Second))
		b.cfg.Supervisor.PollIntervalMillis = 20
		b.cfg.Supervisor.TerminateGraceMillis = 200
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
