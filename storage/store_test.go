package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/richinex/scout/model"
)

func sampleRun(id string, started time.Time) model.RunResult {
	return model.RunResult{
		RunID:        id,
		Query:        "acme revenue 2023",
		Status:       model.StatusSuccess,
		Report:       "Revenue was 42.",
		FinishReason: "report ready",
		Steps:        2,
		TotalCost:    0.07,
		FinalFacts: model.Facts{
			RewrittenQuery: model.Ptr("ACME revenue 2023"),
			CollectedData:  map[string]model.Evidence{"revenue": {Data: "42", Source: model.EvidenceRAG}},
		},
		History: []model.HistoryEntry{
			{Step: 1, Action: model.ActionRewrite, Success: true},
			{Step: 2, Action: model.ActionSearchDB, Success: false, Error: "timeout"},
		},
		Decisions: []model.Decision{
			{Step: 1, Legal: []model.ActionType{model.ActionRewrite}, Action: model.ActionRewrite, Reason: "start"},
		},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
}

type storeFactory struct {
	name string
	open func(t *testing.T) RunStore
}

func stores() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) RunStore { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) RunStore {
			s, err := NewSqliteInMemory()
			if err != nil {
				t.Fatalf("Failed to create storage: %v", err)
			}
			return s
		}},
	}
}

func TestRunStoreSaveAndGet(t *testing.T) {
	for _, f := range stores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			want := sampleRun("run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
			if err := store.SaveRun(ctx, want); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}

			got, err := store.GetRun(ctx, "run-1")
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.Report != want.Report || got.Status != want.Status || got.Steps != 2 {
				t.Errorf("unexpected run %+v", got)
			}
			if !got.StartedAt.Equal(want.StartedAt) || got.Duration != want.Duration {
				t.Errorf("times not preserved: %v %v", got.StartedAt, got.Duration)
			}
			if *got.FinalFacts.RewrittenQuery != "ACME revenue 2023" || got.FinalFacts.CollectedData["revenue"].Data != "42" {
				t.Errorf("facts not preserved: %+v", got.FinalFacts)
			}
			if len(got.History) != 2 || got.History[1].Error != "timeout" {
				t.Errorf("history not preserved: %+v", got.History)
			}
			if len(got.Decisions) != 1 || got.Decisions[0].Reason != "start" {
				t.Errorf("decisions not preserved: %+v", got.Decisions)
			}
		})
	}
}

func TestRunStoreGetMissing(t *testing.T) {
	for _, f := range stores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()

			if _, err := store.GetRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("expected ErrRunNotFound, got %v", err)
			}
		})
	}
}

func TestRunStoreReplacesAndLists(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, f := range stores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			ctx := context.Background()

			for i, id := range []string{"a", "b", "c"} {
				if err := store.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatalf("SaveRun(%s) failed: %v", id, err)
				}
			}
			replaced := sampleRun("a", base)
			replaced.Status = model.StatusNeedInput
			if err := store.SaveRun(ctx, replaced); err != nil {
				t.Fatalf("SaveRun replace failed: %v", err)
			}

			runs, err := store.ListRuns(ctx, 0)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(runs) != 3 {
				t.Fatalf("expected 3 runs, got %d", len(runs))
			}
			if runs[0].RunID != "c" || runs[2].RunID != "a" {
				t.Errorf("expected newest first, got %s..%s", runs[0].RunID, runs[2].RunID)
			}
			if runs[2].Status != model.StatusNeedInput {
				t.Errorf("expected replaced status, got %s", runs[2].Status)
			}

			limited, err := store.ListRuns(ctx, 2)
			if err != nil || len(limited) != 2 {
				t.Errorf("expected 2 runs with limit, got %d (%v)", len(limited), err)
			}
		})
	}
}

func TestRunStoreRejectsMissingID(t *testing.T) {
	for _, f := range stores() {
		t.Run(f.name, func(t *testing.T) {
			store := f.open(t)
			defer store.Close()
			if err := store.SaveRun(context.Background(), model.RunResult{}); err == nil {
				t.Error("expected an error for a run without id")
			}
		})
	}
}

func TestSqliteNormalizesStepsAndDecisions(t *testing.T) {
	store, err := NewSqliteInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	run := sampleRun("run-1", time.Now())
	for i := 0; i < 2; i++ {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	var steps, failed, decisions int
	if err := store.db.QueryRow("SELECT COUNT(*), SUM(1 - success) FROM steps WHERE run_id = ?", "run-1").Scan(&steps, &failed); err != nil {
		t.Fatal(err)
	}
	if err := store.db.QueryRow("SELECT COUNT(*) FROM decisions WHERE run_id = ?", "run-1").Scan(&decisions); err != nil {
		t.Fatal(err)
	}
	if steps != 2 || failed != 1 || decisions != 1 {
		t.Errorf("expected 2 steps (1 failed) and 1 decision, got %d (%d) and %d", steps, failed, decisions)
	}

	var legal string
	if err := store.db.QueryRow("SELECT legal FROM decisions WHERE run_id = ?", "run-1").Scan(&legal); err != nil {
		t.Fatal(err)
	}
	if legal != string(model.ActionRewrite) {
		t.Errorf("unexpected legal column %q", legal)
	}
}

func TestOpenSqlitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()

	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("run-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("run should survive a reopen: %v", err)
	}
}
