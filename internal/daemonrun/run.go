package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ydhouse/internal/config"
	"ydhouse/internal/daemon"
	"ydhouse/internal/deps"
	"ydhouse/internal/logging"
	"ydhouse/internal/paths"
)

// logHubCapacity bounds the records kept for /api/logs.
const logHubCapacity = 4096

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Cwd anchors project root resolution when paths.project_root is unset.
	Cwd string
}

// Run starts the ydhouse daemon and blocks until a signal arrives, the
// context ends or a client requests a stop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logHub := logging.NewStreamHub(logHubCapacity)

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
		Stream:      logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cwd := opts.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	}
	layout := paths.FromConfig(cfg, cwd)
	logDependencySnapshot(logger, layout)

	d, err := daemon.New(cfg, layout, logger, logHub)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other daemon or free paths.api_bind"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
	case <-d.StopRequested():
	}
	logger.Info("ydhouse daemon shutting down")
	return nil
}

func logDependencySnapshot(logger *slog.Logger, layout paths.Layout) {
	if logger == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("project_root", layout.Root),
		logging.Bool("interpreter_available", fileExists(layout.Interpreter())),
		logging.String("interpreter", layout.Interpreter()),
		logging.Bool("embed_script_present", fileExists(layout.EmbedScript())),
		logging.Bool("rag_script_present", fileExists(layout.RAGScript())),
		logging.Bool("channels_file_present", fileExists(layout.ChannelsFile())),
		logging.Bool("env_file_present", fileExists(layout.EnvFile())),
	)
	for _, status := range deps.CheckBinaries(deps.Defaults()) {
		if status.Available {
			logger.Debug("binary available",
				logging.String("name", status.Name),
				logging.String("path", status.Path),
			)
			continue
		}
		logging.WarnWithContext(logger, "binary unavailable", "dependency_missing",
			logging.String("name", status.Name),
			logging.String("detail", status.Detail),
			logging.Bool("optional", status.Optional),
			logging.String("impact", status.Description),
			logging.String(logging.FieldErrorHint, "install "+status.Command+" to enable conversion"),
		)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
