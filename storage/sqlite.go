package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/scout/model"
)

// SqliteStore implements RunStore on a SQLite database file.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return openSqlite(path)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	return openSqlite(":memory:")
}

func openSqlite(dsn string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			report TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL DEFAULT '',
			finish_reason TEXT NOT NULL DEFAULT '',
			steps INTEGER NOT NULL,
			total_cost REAL NOT NULL,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			result TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			action TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, step),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS decisions (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			legal TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (run_id, step),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores a run with its steps and decisions, replacing any run
// with the same id.
func (s *SqliteStore) SaveRun(ctx context.Context, run model.RunResult) error {
	if run.RunID == "" {
		return errors.New("run has no id")
	}
	result, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"steps", "decisions", "runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.RunID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, query, status, report, question, finish_reason,
			steps, total_cost, started_at, duration_ms, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Query, string(run.Status), run.Report, run.Question, run.FinishReason,
		run.Steps, run.TotalCost, run.StartedAt.UnixNano(), run.Duration.Milliseconds(), string(result),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stepStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO steps (run_id, step, action, success, error) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stepStmt.Close()
	for _, h := range run.History {
		if _, err := stepStmt.ExecContext(ctx, run.RunID, h.Step, string(h.Action), h.Success, h.Error); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", h.Step, err)
		}
	}

	decisionStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO decisions (run_id, step, legal, action, reason) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare decision insert: %w", err)
	}
	defer decisionStmt.Close()
	for _, d := range run.Decisions {
		legal := make([]string, len(d.Legal))
		for i, a := range d.Legal {
			legal[i] = string(a)
		}
		if _, err := decisionStmt.ExecContext(ctx, run.RunID, d.Step, strings.Join(legal, ","), string(d.Action), d.Reason); err != nil {
			return fmt.Errorf("failed to insert decision %d: %w", d.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SqliteStore) GetRun(ctx context.Context, runID string) (model.RunResult, error) {
	var result string
	err := s.db.QueryRowContext(ctx, "SELECT result FROM runs WHERE run_id = ?", runID).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return model.RunResult{}, fmt.Errorf("failed to query run: %w", err)
	}

	var run model.RunResult
	if err := json.Unmarshal([]byte(result), &run); err != nil {
		return model.RunResult{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the newest runs first.
func (s *SqliteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := "SELECT run_id, query, status, steps, total_cost, started_at FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			status  string
			started int64
		)
		if err := rows.Scan(&r.RunID, &r.Query, &status, &r.Steps, &r.TotalCost, &started); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = model.RunStatus(status)
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
