package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ydhouse/internal/api"
	"ydhouse/internal/config"
	"ydhouse/internal/daemon"
	"ydhouse/internal/deps"
	"ydhouse/internal/paths"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
	// WorkDir is the daemon's working directory, used for project root
	// resolution when paths.project_root is unset.
	WorkDir string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch starts a detached `ydhouse daemon run` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if dir := strings.TrimSpace(opts.WorkDir); dir != "" {
		proc.Dir = dir
	}
	configureDetached(proc)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the daemon API until it answers or timeout elapses.
func WaitForAPI(ctx context.Context, client *api.Client, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.DaemonStatus(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.DaemonStatus(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if err != nil && !api.IsAPIUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForAPI(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// WaitForShutdown waits for the daemon API to stop answering.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.DaemonStatus(ctx)
		switch {
		case err != nil && api.IsAPIUnavailable(err):
			return nil
		case err != nil:
			lastErr = err
		case !status.Running:
			return nil
		default:
			lastErr = fmt.Errorf("daemon still running")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo returns whether the daemon API is reachable and the daemon PID.
func ProcessInfo(ctx context.Context, client *api.Client) (bool, int, error) {
	status, err := client.DaemonStatus(ctx)
	if err != nil {
		if api.IsAPIUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return status.Running, status.PID, nil
}

// ForceKillProcess kills the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pidStr != "" {
			if parsed, parseErr := strconv.Atoi(pidStr); parseErr == nil && parsed > 0 {
				pid = parsed
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates the daemon API is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate requests a daemon stop and force-kills the process if it
// still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.DaemonStatus(ctx)
	if err != nil {
		if api.IsAPIUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	resp, err := client.StopDaemon(ctx)
	if err != nil && !api.IsAPIUnavailable(err) {
		return StopResult{}, err
	}
	result := StopResult{PID: status.PID, StopAcknowledged: resp.Stopped}

	_ = WaitForShutdown(ctx, client, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(ctx, client)
	if aliveErr != nil || !alive {
		return result, nil
	}

	currentPID := livePID
	if currentPID == 0 {
		currentPID = status.PID
	}
	pidPath, lockPath := status.PIDPath, status.LockPath
	if pidPath == "" && cfg != nil {
		pidPath = filepath.Join(cfg.Paths.StateDir, daemon.PIDFileName)
		lockPath = filepath.Join(cfg.Paths.StateDir, daemon.LockFileName)
	}
	killedPID, killErr := ForceKillProcess(pidPath, lockPath, currentPID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, client *api.Client, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, client, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// StatusLine is one row of the offline readiness report.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// BuildSystemChecks reports daemon state, the project files the workers
// depend on and the system binaries from deps.Defaults.
func BuildSystemChecks(layout paths.Layout, daemonRunning bool) []StatusLine {
	lines := make([]StatusLine, 0, 9)
	if daemonRunning {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `ydhouse daemon start`)"})
	}
	lines = append(lines, StatusLine{Label: "Project", Severity: "info", Detail: layout.Root})

	for _, check := range []struct {
		label    string
		path     string
		optional bool
	}{
		{label: "Interpreter", path: layout.Interpreter()},
		{label: "Embed worker", path: layout.EmbedScript()},
		{label: "RAG worker", path: layout.RAGScript()},
		{label: "Integrity worker", path: layout.IntegrityScript(), optional: true},
		{label: "Channel list", path: layout.ChannelsFile(), optional: true},
	} {
		if err := paths.Require(check.path, check.label); err != nil {
			severity := "error"
			if check.optional {
				severity = "warn"
			}
			lines = append(lines, StatusLine{Label: check.label, Severity: severity, Detail: "Missing: " + layout.Rel(check.path)})
			continue
		}
		lines = append(lines, StatusLine{Label: check.label, Severity: "ok", Detail: layout.Rel(check.path)})
	}
	for _, status := range deps.CheckBinaries(deps.Defaults()) {
		switch {
		case status.Available:
			lines = append(lines, StatusLine{Label: status.Name, Severity: "ok", Detail: status.Path})
		case status.Optional:
			lines = append(lines, StatusLine{Label: status.Name, Severity: "warn", Detail: "Not found (" + status.Description + ")"})
		default:
			lines = append(lines, StatusLine{Label: status.Name, Severity: "error", Detail: status.Detail})
		}
	}
	return lines
}
