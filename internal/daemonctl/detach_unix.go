//go:build !windows

package daemonctl

import (
	"os/exec"
	"syscall"
)

// configureDetached moves the daemon into its own session so terminal
// signals sent to the CLI do not reach it.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
