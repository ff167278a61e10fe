package supervisor

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

// Captured is the collected output of a one-shot worker.
type Captured struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// LineFunc observes stdout lines of a one-shot worker as they arrive.
type LineFunc func(line string)

// RunCaptured runs inv to completion and returns its output. onStdout, when
// set, sees each stdout line before it is buffered. Cancelling ctx
// terminates the worker.
func (s *Supervisor) RunCaptured(ctx context.Context, inv Invocation, onStdout LineFunc) (Captured, error) {
	proc, err := s.starter.Start(ctx, inv)
	if err != nil {
		return Captured{}, services.Wrap(services.ErrSpawnFailed, "supervisor", "run", inv.Program, err)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("one-shot worker started", logging.String("program", inv.Program), logging.Any("args", inv.Args))

	var (
		mu     sync.Mutex
		stdout []string
		stderr []string
	)
	g := new(errgroup.Group)
	collect := func(stream string, scan *bufio.Scanner, sink *[]string, observe LineFunc) func() error {
		return func() error {
			scan.Buffer(make([]byte, 64*1024), maxLineBytes)
			for scan.Scan() {
				line := scan.Text()
				if observe != nil {
					observe(line)
				}
				mu.Lock()
				*sink = append(*sink, line)
				mu.Unlock()
			}
			if err := scan.Err(); err != nil {
				logger.Debug("one-shot reader stopped", logging.String("stream", stream), logging.Error(err))
			}
			return nil
		}
	}
	g.Go(collect("stdout", bufio.NewScanner(proc.Stdout()), &stdout, onStdout))
	g.Go(collect("stderr", bufio.NewScanner(proc.Stderr()), &stderr, nil))

	cancelled := false
	select {
	case <-proc.Exited():
	case <-ctx.Done():
		cancelled = true
		_ = proc.Terminate()
		select {
		case <-proc.Exited():
		case <-time.After(s.grace):
			_ = proc.Kill()
			<-proc.Exited()
		}
	}

	readersDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(readersDone)
	}()
	select {
	case <-readersDone:
	case <-time.After(s.grace):
		_ = proc.Close()
		<-readersDone
	}
	_ = proc.Close()

	out := Captured{
		Stdout:   strings.Join(stdout, "\n"),
		Stderr:   strings.Join(stderr, "\n"),
		ExitCode: proc.ExitCode(),
	}
	if cancelled {
		return out, services.Wrap(services.ErrCancelled, "supervisor", "run", inv.Program, ctx.Err())
	}
	if out.ExitCode != 0 {
		return out, &services.WorkerError{
			Program:    filepath.Base(inv.Program),
			ExitCode:   out.ExitCode,
			StderrTail: services.TrimTail(stderr, s.tailLines),
		}
	}
	return out, nil
}
