// Package history persists run outcomes so past runs can be inspected after
// the process exits. Recording is optional: a controller without a store
// simply keeps nothing.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

// RunRecord summarizes one orchestration run.
type RunRecord struct {
	RunID      string
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// TaskRecord is the terminal result of one task within a run.
type TaskRecord struct {
	RunID    string
	TaskID   string
	State    string
	Reason   string
	Output   string
	Error    string
	Attempts int
	Elapsed  time.Duration
}

// Store defines the persistence interface for run records.
type Store interface {
	SaveRun(ctx context.Context, run RunRecord, tasks []TaskRecord) error
	GetRun(ctx context.Context, runID string) (RunRecord, []TaskRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// DefaultPath returns the conventional history database location under the
// user's XDG data directory.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join("taskforge", "history.db"))
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	// A single connection keeps the in-memory database alive.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// SaveRun stores the run summary and all per-task results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord, tasks []TaskRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, outcome, started_at, finished_at) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Outcome, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %q: %w", run.RunID, err)
	}

	for _, t := range tasks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_results (run_id, task_id, state, reason, output, error, attempts, elapsed_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, t.TaskID, t.State, t.Reason, t.Output, t.Error, t.Attempts, t.Elapsed.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert task result %q: %w", t.TaskID, err)
		}
	}

	return tx.Commit()
}

// GetRun loads one run and its task results.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunRecord, []TaskRecord, error) {
	var run RunRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, outcome, started_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&run.RunID, &run.Outcome, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("failed to load run %q: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, state, reason, output, error, attempts, elapsed_ms
		 FROM task_results WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("failed to load task results for %q: %w", runID, err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		t := TaskRecord{RunID: runID}
		var elapsedMS int64
		if err := rows.Scan(&t.TaskID, &t.State, &t.Reason, &t.Output, &t.Error, &t.Attempts, &elapsedMS); err != nil {
			return RunRecord{}, nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		t.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		tasks = append(tasks, t)
	}

	return run, tasks, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, outcome, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.RunID, &run.Outcome, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
