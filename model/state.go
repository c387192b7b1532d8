package model

// HistoryEntry is one line of a run's audit log.
type HistoryEntry struct {
	Step    int        `json:"step"`
	Action  ActionType `json:"action"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// TrajectoryRecord captures the state a step started from, what was done
// and what came of it.
type TrajectoryRecord struct {
	State   RunState `json:"state"`
	Action  Action   `json:"action"`
	Outcome Outcome  `json:"outcome"`
}

// RunState is the mutable aggregate for one query. It is owned by a single
// orchestrator loop; skills see it read-only.
type RunState struct {
	Query           string         `json:"query"`
	Facts           Facts          `json:"facts"`
	History         []HistoryEntry `json:"history"`
	StepCount       int            `json:"step_count"`
	AccumulatedCost float64        `json:"accumulated_cost"`
}

// NewRunState creates an empty state for query.
func NewRunState(query string) *RunState {
	return &RunState{Query: query, History: []HistoryEntry{}}
}

// Apply folds the outcome of action into the state: the step counter
// advances, the cost is accrued, facts of a successful outcome are merged
// and a history entry is appended whether or not the step succeeded.
func (s *RunState) Apply(action Action, outcome Outcome) {
	s.StepCount++
	s.AccumulatedCost += outcome.Cost
	if outcome.Success() {
		s.Facts.Merge(outcome.Facts)
	}
	s.History = append(s.History, HistoryEntry{
		Step:    s.StepCount,
		Action:  action.Type,
		Success: outcome.Success(),
		Error:   outcome.Error,
	})
}

// RecentHistory returns up to n most recent history entries.
func (s *RunState) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	start := len(s.History) - n
	if start < 0 {
		start = 0
	}
	return s.History[start:]
}

// Snapshot returns a deep copy that later mutation of s cannot affect.
func (s *RunState) Snapshot() RunState {
	history := make([]HistoryEntry, len(s.History))
	copy(history, s.History)
	return RunState{
		Query:           s.Query,
		Facts:           s.Facts.Clone(),
		History:         history,
		StepCount:       s.StepCount,
		AccumulatedCost: s.AccumulatedCost,
	}
}

// EffectiveQuery returns the rewritten query when present, else the original.
func (s *RunState) EffectiveQuery() string {
	if s.Facts.RewrittenQuery != nil && *s.Facts.RewrittenQuery != "" {
		return *s.Facts.RewrittenQuery
	}
	return s.Query
}
