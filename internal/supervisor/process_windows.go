//go:build windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcAttr(*exec.Cmd) {}

// Windows has no SIGTERM equivalent for console children.
func terminateProcess(proc *os.Process) error {
	return killProcess(proc)
}

func killProcess(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
