package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/richinex/scout/model"
)

// MemoryStore implements RunStore using an in-memory map.
// Data is lost when process terminates.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
	sums map[string]RunSummary
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string][]byte),
		sums: make(map[string]RunSummary),
	}
}

// SaveRun stores an encoded copy of run.
func (s *MemoryStore) SaveRun(_ context.Context, run model.RunResult) error {
	if run.RunID == "" {
		return fmt.Errorf("run has no id")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = data
	s.sums[run.RunID] = summarize(run)
	return nil
}

// GetRun returns a copy of the stored run.
func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunResult, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return model.RunResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	var run model.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunResult{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the newest runs first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	runs := make([]RunSummary, 0, len(s.sums))
	for _, r := range s.sums {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
