// Package journal records processing runs in a SQLite database kept next
// to the output files. The markers remain the source of truth for
// idempotency; the journal exists for operators asking what happened and
// when.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"neuroproc/internal/fileutil"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded processing attempt.
type Run struct {
	ID           string
	FileName     string
	SourcePath   string
	Kind         string
	Status       string
	ErrorMessage string
	OutputFile   string
	ReportFile   string
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// Stats aggregates run counts per status.
type Stats struct {
	Total     int
	Running   int
	Succeeded int
	Failed    int
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    source_path TEXT NOT NULL,
    kind TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    output_file TEXT NOT NULL DEFAULT '',
    report_file TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_file_name ON runs(file_name);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
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

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordStart inserts a running entry and returns its run ID.
func (s *Store) RecordStart(ctx context.Context, fileName, sourcePath, kind string) (string, error) {
	id := uuid.NewString()
	started := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, file_name, source_path, kind, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, fileName, sourcePath, kind, StatusRunning, started,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordSuccess finalizes a run as succeeded.
func (s *Store) RecordSuccess(ctx context.Context, id, outputFile, reportFile string, duration time.Duration) error {
	return s.finish(ctx, id, StatusSucceeded, "", outputFile, reportFile, duration)
}

// RecordFailure finalizes a run as failed with the error message.
func (s *Store) RecordFailure(ctx context.Context, id, message string, duration time.Duration) error {
	return s.finish(ctx, id, StatusFailed, message, "", "", duration)
}

func (s *Store) finish(ctx context.Context, id, status, message, outputFile, reportFile string, duration time.Duration) error {
	finished := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
         SET status = ?, error_message = ?, output_file = ?, report_file = ?,
             finished_at = ?, duration_ms = ?
         WHERE id = ?`,
		status, message, outputFile, reportFile, finished, duration.Milliseconds(), id,
	)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, source_path, kind, status, error_message,
                output_file, report_file, started_at, finished_at, duration_ms
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
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

// Stats counts runs grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusRunning:
			stats.Running = count
		case StatusSucceeded:
			stats.Succeeded = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var startedAt, finishedAt string
	var durationMS int64
	if err := rows.Scan(
		&run.ID, &run.FileName, &run.SourcePath, &run.Kind, &run.Status,
		&run.ErrorMessage, &run.OutputFile, &run.ReportFile,
		&startedAt, &finishedAt, &durationMS,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt != "" {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
