package jobs

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"ydhouse/internal/logging"
)

// OpenInSystemPlayer hands a root-relative video path to the desktop's
// default player. It does not wait for the player to exit.
func (s *Service) OpenInSystemPlayer(ctx context.Context, rel string) error {
	full, err := s.projectFile(rel, "open")
	if err != nil {
		return err
	}
	if err := s.opener(ctx, full); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("opened in system player", logging.String("path", full))
	return nil
}

// playerCommand returns the launcher for goos.
func playerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/C", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

func openWithSystem(_ context.Context, path string) error {
	name, args := playerCommand(runtime.GOOS, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
