package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

const maxLineBytes = 1 << 20

// Result is the outcome of a finished job.
type Result struct {
	RunID          string        `json:"run_id"`
	Tag            string        `json:"job_tag"`
	Topic          string        `json:"topic"`
	Status         events.Status `json:"status"`
	ExitCode       int           `json:"exit_code"`
	TotalSeen      int           `json:"total_seen"`
	TotalCompleted int           `json:"total_completed"`
	StderrTail     string        `json:"stderr_tail,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Err            error         `json:"-"`
}

// Message is a human readable summary of the error, if any.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type stopReason int

const (
	stopNone stopReason = iota
	stopCancelled
	stopTimeout
)

// Job is one supervised worker run.
type Job struct {
	sup    *Supervisor
	tag    string
	runID  string
	opts   SpawnOptions
	inv    Invocation
	proc   Process
	logger *slog.Logger

	startedAt time.Time
	cancelled atomic.Bool
	cancelCh  chan struct{}
	cancelMu  sync.Once

	// Owned by the watcher goroutine.
	counters grammar.Counters
	seq      uint64
	tail     []string

	done   chan struct{}
	result Result
}

func newJob(s *Supervisor, tag string, opts SpawnOptions, inv Invocation) *Job {
	return &Job{
		sup:       s,
		tag:       tag,
		runID:     newRunID(),
		opts:      opts,
		inv:       inv,
		logger:    s.logger,
		startedAt: s.now(),
		cancelCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Tag returns the job tag.
func (j *Job) Tag() string { return j.tag }

// RunID returns the unique identifier of this run.
func (j *Job) RunID() string { return j.runID }

// Done is closed after the terminal event was published and cleanup ran.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its result and error.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		return j.result, j.result.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (j *Job) info() RunInfo {
	return RunInfo{
		RunID:     j.runID,
		Tag:       j.tag,
		Topic:     j.opts.Topic,
		Program:   j.inv.Program,
		Args:      append([]string(nil), j.inv.Args...),
		StartedAt: j.startedAt,
	}
}

func (j *Job) requestCancel() {
	j.cancelMu.Do(func() {
		j.cancelled.Store(true)
		close(j.cancelCh)
	})
}

func (j *Job) publishStarting() {
	j.publish(events.Event{
		Status:      events.StatusStarting,
		CurrentItem: j.opts.CurrentItem,
		LogMessage:  j.opts.StartMessage,
	})
}

func (j *Job) publish(evt events.Event) {
	j.seq++
	evt.Topic = j.opts.Topic
	evt.JobTag = j.tag
	evt.RunID = j.runID
	evt.Seq = j.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = j.sup.now()
	}
	if j.sup.publisher != nil {
		j.sup.publisher.Publish(evt)
	}
}

func (j *Job) run(ctx context.Context) {
	lines := make(chan grammar.Line, 64)
	readerDone := make(chan struct{}, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return j.read(grammar.Stdout, j.proc.Stdout(), lines, readerDone) })
	g.Go(func() error { return j.read(grammar.Stderr, j.proc.Stderr(), lines, readerDone) })

	var reason stopReason
	g.Go(func() error {
		reason = j.watch(gctx, lines, readerDone)
		return nil
	})
	if err := g.Wait(); err != nil {
		j.logger.Debug("job scope ended with error", logging.Error(err))
	}
	_ = j.proc.Close()

	j.finish(ctx, reason, j.proc.ExitCode())
}

// read forwards lines until EOF, a read error, or cancellation.
func (j *Job) read(stream grammar.Stream, r io.Reader, lines chan<- grammar.Line, done chan<- struct{}) error {
	defer func() { done <- struct{}{} }()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if j.cancelled.Load() {
			return nil
		}
		select {
		case lines <- grammar.Line{Stream: stream, Text: scanner.Text()}:
		case <-j.cancelCh:
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		j.logger.Debug("output reader stopped", logging.String("stream", stream.String()), logging.Error(err))
	}
	return nil
}

// watch owns grammar application and every signal sent to the child. It
// returns once the child has exited and both readers have finished.
func (j *Job) watch(ctx context.Context, lines <-chan grammar.Line, readerDone <-chan struct{}) stopReason {
	ticker := time.NewTicker(j.opts.PollInterval)
	defer ticker.Stop()

	reason := stopNone
	openReaders := 2
	exited := false
	lastActivity := j.sup.now()

	var killTimer, drainTimer <-chan time.Time
	exitCh := j.proc.Exited()
	cancelCh := j.cancelCh
	ctxDone := ctx.Done()

	stop := func(r stopReason) {
		if reason != stopNone {
			return
		}
		reason = r
		if err := j.proc.Terminate(); err != nil {
			j.logger.Debug("terminate signal failed", logging.Error(err))
		}
		killTimer = time.After(j.opts.TerminateGrace)
	}

	for !exited || openReaders > 0 {
		select {
		case line := <-lines:
			lastActivity = j.sup.now()
			j.handleLine(line)
		case <-readerDone:
			openReaders--
		case <-exitCh:
			exited = true
			exitCh = nil
			if openReaders > 0 {
				// A grandchild may still hold the pipes open.
				drainTimer = time.After(j.opts.TerminateGrace)
			}
		case <-drainTimer:
			drainTimer = nil
			_ = j.proc.Close()
		case <-cancelCh:
			cancelCh = nil
			if !exited {
				stop(stopCancelled)
			} else {
				reason = stopCancelled
			}
		case <-ctxDone:
			ctxDone = nil
			j.requestCancel()
		case <-killTimer:
			killTimer = nil
			if !exited {
				j.logger.Info("worker ignored terminate, killing", logging.String(logging.FieldEventType, "job_kill"))
				if err := j.proc.Kill(); err != nil {
					j.logger.Debug("kill signal failed", logging.Error(err))
				}
			}
		case <-ticker.C:
			if reason == stopNone && !exited && j.sup.now().Sub(lastActivity) > j.opts.InactivityTimeout {
				j.logger.Warn("worker inactive, terminating",
					logging.Duration("timeout", j.opts.InactivityTimeout),
					logging.String(logging.FieldEventType, "job_inactivity_timeout"),
					logging.String(logging.FieldErrorHint, "the worker stopped producing output; check network access"),
				)
				stop(stopTimeout)
			}
		}
	}

	// Lines buffered after the readers finished still belong to the job.
	for {
		select {
		case line := <-lines:
			j.handleLine(line)
		default:
			return reason
		}
	}
}

func (j *Job) handleLine(line grammar.Line) {
	if line.Stream == grammar.Stderr {
		j.appendTail(line.Text)
	}
	update, ok := j.opts.Grammar.Apply(&j.counters, line)
	if !ok {
		return
	}
	status := events.StatusRunning
	if update.Warning {
		status = events.StatusWarning
	}
	j.publish(events.Event{
		Status:         status,
		Progress:       update.Progress,
		CurrentItem:    update.CurrentItem,
		TotalSeen:      j.counters.TotalSeen,
		TotalCompleted: j.counters.TotalCompleted,
		LogMessage:     update.Log,
	})
}

func (j *Job) appendTail(text string) {
	limit := j.sup.tailLines
	j.tail = append(j.tail, text)
	if len(j.tail) > limit*2 {
		j.tail = append([]string(nil), j.tail[len(j.tail)-limit:]...)
	}
}

func (j *Job) finish(ctx context.Context, reason stopReason, exitCode int) {
	result := Result{
		RunID:          j.runID,
		Tag:            j.tag,
		Topic:          j.opts.Topic,
		ExitCode:       exitCode,
		TotalSeen:      j.counters.TotalSeen,
		TotalCompleted: j.counters.TotalCompleted,
		StderrTail:     services.TrimTail(j.tail, j.sup.tailLines),
		StartedAt:      j.startedAt,
		FinishedAt:     j.sup.now(),
	}
	terminal := events.Event{
		CurrentItem:    j.counters.CurrentItem,
		TotalSeen:      j.counters.TotalSeen,
		TotalCompleted: j.counters.TotalCompleted,
		Progress:       j.counters.Progress(),
	}

	switch {
	case reason == stopCancelled:
		result.Status = events.StatusCancelled
		result.Err = services.Wrap(services.ErrCancelled, "supervisor", j.tag, "cancelled by user", nil)
		terminal.LogMessage = "⏹️ 작업이 중단되었습니다"
	case reason == stopTimeout:
		result.Status = events.StatusFailed
		result.Err = services.Wrap(services.ErrTimeout, "supervisor", j.tag,
			fmt.Sprintf("no output for %s", j.opts.InactivityTimeout), nil)
		terminal.LogMessage = fmt.Sprintf("⏰ %s 동안 출력이 없어 작업을 종료했습니다", j.opts.InactivityTimeout)
	case exitCode == 0:
		result.Status = events.StatusOK
		terminal.Progress = 100
		terminal.LogMessage = "✅ 작업 완료"
	default:
		result.Status = events.StatusFailed
		result.Err = &services.WorkerError{
			Program:    filepath.Base(j.inv.Program),
			ExitCode:   exitCode,
			StderrTail: result.StderrTail,
		}
		terminal.LogMessage = "❌ " + result.Err.Error()
	}
	terminal.Status = result.Status

	j.sup.release(j)
	j.publish(terminal)

	if reason != stopNone {
		CleanStaging(j.opts.StagingDir, j.logger)
	}
	j.sup.recordFinished(ctx, result)
	j.logFinish(result)

	j.result = result
	close(j.done)
}

// finishWithoutProcess closes a job whose worker never started.
func (j *Job) finishWithoutProcess(ctx context.Context, err error) {
	result := Result{
		RunID:      j.runID,
		Tag:        j.tag,
		Topic:      j.opts.Topic,
		Status:     events.StatusFailed,
		ExitCode:   -1,
		StartedAt:  j.startedAt,
		FinishedAt: j.sup.now(),
		Err:        err,
	}
	j.sup.release(j)
	j.publish(events.Event{Status: events.StatusFailed, LogMessage: "❌ " + err.Error()})
	j.sup.recordFinished(ctx, result)
	j.result = result
	close(j.done)
}

func (j *Job) logFinish(result Result) {
	attrs := []logging.Attr{
		logging.String("status", string(result.Status)),
		logging.Int("exit_code", result.ExitCode),
		logging.Int("total_seen", result.TotalSeen),
		logging.Int("total_completed", result.TotalCompleted),
		logging.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	}
	if result.Status == events.StatusFailed {
		attrs = append(attrs, logging.Error(result.Err))
		logging.WarnWithContext(j.logger, "job failed", "job_failed", attrs...)
		return
	}
	j.logger.Info("job finished", logging.Args(attrs...)...)
}
