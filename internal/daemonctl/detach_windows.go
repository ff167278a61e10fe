//go:build windows

package daemonctl

import "os/exec"

func configureDetached(*exec.Cmd) {}
