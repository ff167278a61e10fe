package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Invocation describes a worker command line.
type Invocation struct {
	Program string
	Args    []string
	Dir     string
	// Env is the complete child environment; nil inherits the parent's.
	Env []string
}

// Process is a started worker.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Exited is closed once the child has been reaped.
	Exited() <-chan struct{}
	// ExitCode is valid after Exited; -1 means the child was killed by a signal.
	ExitCode() int
	Terminate() error
	Kill() error
	// Close releases the read ends of the output pipes.
	Close() error
}

// Starter launches processes; tests may substitute their own.
type Starter interface {
	Start(ctx context.Context, inv Invocation) (Process, error)
}

// ExecStarter starts real OS processes in their own process group.
type ExecStarter struct{}

// Start launches inv with stdin closed and both output streams piped.
func (ExecStarter) Start(_ context.Context, inv Invocation) (Process, error) {
	if inv.Program == "" {
		return nil, errors.New("program required")
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command(inv.Program, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.Stdout = outW
	cmd.Stderr = errW
	configureProcAttr(cmd)

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	_ = outW.Close()
	_ = errW.Close()
	if startErr != nil {
		_ = outR.Close()
		_ = errR.Close()
		return nil, startErr
	}

	p := &execProcess{cmd: cmd, stdout: outR, stderr: errR, exited: make(chan struct{})}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File

	exited   chan struct{}
	exitCode int

	closeOnce sync.Once
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.exitCode = code
	close(p.exited)
}

func (p *execProcess) Stdout() io.Reader       { return p.stdout }
func (p *execProcess) Stderr() io.Reader       { return p.stderr }
func (p *execProcess) Exited() <-chan struct{} { return p.exited }

func (p *execProcess) ExitCode() int {
	<-p.exited
	return p.exitCode
}

func (p *execProcess) Terminate() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	return terminateProcess(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	return killProcess(p.cmd.Process)
}

func (p *execProcess) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = errors.Join(p.stdout.Close(), p.stderr.Close())
	})
	return err
}
