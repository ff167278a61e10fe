package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ydhouse/internal/config"
	"ydhouse/internal/events"
	"ydhouse/internal/supervisor"
)

// FileName is the database created under the state directory.
const FileName = "history.db"

// StatusRunning marks a run that has not finished yet.
const StatusRunning = "running"

// StatusInterrupted marks a run whose daemon exited before it finished.
const StatusInterrupted = "interrupted"

// Run is one recorded job run.
type Run struct {
	RunID          string     `json:"run_id"`
	Tag            string     `json:"job_tag"`
	Topic          string     `json:"topic"`
	Program        string     `json:"program"`
	Args           []string   `json:"args"`
	Status         string     `json:"status"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	TotalSeen      int        `json:"total_seen"`
	TotalCompleted int        `json:"total_completed"`
	Error          string     `json:"error,omitempty"`
	StderrTail     string     `json:"stderr_tail,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens <state_dir>/history.db, creating it when absent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, FileName))
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.markInterrupted(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RunStarted inserts a running row. It satisfies supervisor.Recorder.
func (s *Store) RunStarted(ctx context.Context, info supervisor.RunInfo) error {
	args, err := json.Marshal(nonNil(info.Args))
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_runs (run_id, job_tag, topic, program, args_json, status, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.RunID,
		info.Tag,
		info.Topic,
		info.Program,
		string(args),
		StatusRunning,
		formatTime(info.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunFinished stores the outcome of a run. Runs that failed before
// RunStarted was recorded are inserted whole.
func (s *Store) RunFinished(ctx context.Context, result supervisor.Result) error {
	var errMessage sql.NullString
	if result.Err != nil {
		errMessage = sql.NullString{String: result.Err.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, exit_code = ?, total_seen = ?, total_completed = ?,
            error_message = ?, stderr_tail = ?, finished_at = ?
        WHERE run_id = ?`,
		string(result.Status),
		result.ExitCode,
		result.TotalSeen,
		result.TotalCompleted,
		errMessage,
		nullableString(result.StderrTail),
		formatTime(result.FinishedAt),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_runs (run_id, job_tag, topic, program, status, exit_code, total_seen,
            total_completed, error_message, stderr_tail, started_at, finished_at)
        VALUES (?, ?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Tag,
		result.Topic,
		string(result.Status),
		result.ExitCode,
		result.TotalSeen,
		result.TotalCompleted,
		errMessage,
		nullableString(result.StderrTail),
		formatTime(result.StartedAt),
		formatTime(result.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert finished run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, job_tag, topic, program, args_json, status, exit_code, total_seen,
        total_completed, error_message, stderr_tail, started_at, finished_at
        FROM job_runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastSuccess returns the newest successful run for tag, or nil.
func (s *Store) LastSuccess(ctx context.Context, tag string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, job_tag, topic, program, args_json, status, exit_code, total_seen,
            total_completed, error_message, stderr_tail, started_at, finished_at
        FROM job_runs WHERE job_tag = ? AND status = ?
        ORDER BY finished_at DESC LIMIT 1`,
		tag,
		string(events.StatusOK),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LastSuccessAt returns when the last successful run of tag finished.
func (s *Store) LastSuccessAt(ctx context.Context, tag string) (*time.Time, error) {
	run, err := s.LastSuccess(ctx, tag)
	if err != nil || run == nil {
		return nil, err
	}
	return run.FinishedAt, nil
}

func (s *Store) markInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, finished_at = ? WHERE status = ?`,
		StatusInterrupted,
		formatTime(time.Now()),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		argsJSON   string
		exitCode   sql.NullInt64
		errMessage sql.NullString
		stderrTail sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(
		&run.RunID,
		&run.Tag,
		&run.Topic,
		&run.Program,
		&argsJSON,
		&run.Status,
		&exitCode,
		&run.TotalSeen,
		&run.TotalCompleted,
		&errMessage,
		&stderrTail,
		&startedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
			return Run{}, fmt.Errorf("decode args for run %s: %w", run.RunID, err)
		}
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	run.Error = errMessage.String
	run.StderrTail = stderrTail.String
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid && finishedAt.String != "" {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// DB exposes the underlying handle for maintenance commands and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}
