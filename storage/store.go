// Package storage persists finished runs for later inspection.
//
// Two RunStore implementations are provided: SqliteStore for the CLI's
// --export flag and MemoryStore for tests and ephemeral use. Both keep the
// complete RunResult; SQLite additionally normalizes steps and decisions
// into their own tables for ad hoc queries.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richinex/scout/model"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID     string
	Query     string
	Status    model.RunStatus
	Steps     int
	TotalCost float64
	StartedAt time.Time
}

// RunStore saves and retrieves runs. Saving a run id again replaces it.
type RunStore interface {
	SaveRun(ctx context.Context, run model.RunResult) error
	GetRun(ctx context.Context, runID string) (model.RunResult, error)
	// ListRuns returns the newest runs first. limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}

func summarize(run model.RunResult) RunSummary {
	return RunSummary{
		RunID:     run.RunID,
		Query:     run.Query,
		Status:    run.Status,
		Steps:     run.Steps,
		TotalCost: run.TotalCost,
		StartedAt: run.StartedAt,
	}
}
