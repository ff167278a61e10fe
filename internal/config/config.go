package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ProjectRoot string `toml:"project_root"`
	LogDir      string `toml:"log_dir"`
	StateDir    string `toml:"state_dir"`
	APIBind     string `toml:"api_bind"`
}

// Supervisor contains worker process supervision knobs.
type Supervisor struct {
	InactivityTimeoutSeconds int `toml:"inactivity_timeout_seconds"`
	PollIntervalMillis       int `toml:"poll_interval_ms"`
	TerminateGraceMillis     int `toml:"terminate_grace_ms"`
	StderrTailLines          int `toml:"stderr_tail_lines"`
}

// Downloader contains the rate-limit knobs passed to the downloader worker.
type Downloader struct {
	SleepInterval         int    `toml:"sleep_interval"`
	MaxSleepInterval      int    `toml:"max_sleep_interval"`
	SleepRequests         int    `toml:"sleep_requests"`
	SocketTimeout         int    `toml:"socket_timeout"`
	Retries               int    `toml:"retries"`
	FullScanSocketTimeout int    `toml:"full_scan_socket_timeout"`
	FullScanRetries       int    `toml:"full_scan_retries"`
	DefaultQuality        string `toml:"default_quality"`
}

// MediaServer contains configuration for the loopback range server.
type MediaServer struct {
	AllowedOrigins    []string `toml:"allowed_origins"`
	FallbackPortStart int      `toml:"fallback_port_start"`
	FallbackPortEnd   int      `toml:"fallback_port_end"`
}

// RAG contains defaults for question answering requests.
type RAG struct {
	DefaultModel string `toml:"default_model"`
}

// Events contains progress event bus settings.
type Events struct {
	SubscriberBuffer int `toml:"subscriber_buffer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ydhouse.
//
// Configuration sections by subsystem:
//   - Paths: project root override, log/state directories, API bind address
//   - Supervisor: inactivity timeout and termination timing for workers
//   - Downloader: rate-limit environment for the downloader worker
//   - MediaServer: CORS origins and fallback port range
//   - RAG: default model for question answering
//   - Events: progress bus subscriber buffering
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Supervisor  Supervisor  `toml:"supervisor"`
	Downloader  Downloader  `toml:"downloader"`
	MediaServer MediaServer `toml:"media_server"`
	RAG         RAG         `toml:"rag"`
	Events      Events      `toml:"events"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ydhouse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
