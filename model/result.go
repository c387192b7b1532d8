package model

import "time"

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	// StatusSuccess means a report was produced.
	StatusSuccess RunStatus = "success"
	// StatusNeedInput means the run stopped to ask the user a question.
	StatusNeedInput RunStatus = "need_input"
	// StatusExhausted means the step budget ran out before a report.
	StatusExhausted RunStatus = "exhausted"
	// StatusIncomplete means the run finished with neither a report nor a
	// question, e.g. after a coerced FINISH.
	StatusIncomplete RunStatus = "incomplete"
	// StatusCancelled means the caller's context was cancelled.
	StatusCancelled RunStatus = "cancelled"
)

// Decision is one entry of a policy's decision log.
type Decision struct {
	Step   int          `json:"step"`
	Facts  string       `json:"facts"`
	Legal  []ActionType `json:"legal"`
	Action ActionType   `json:"action"`
	Reason string       `json:"reason"`
	Prompt string       `json:"prompt,omitempty"`
	Raw    string       `json:"raw,omitempty"`
}

// RunResult is what a finished run reports to its caller.
type RunResult struct {
	RunID        string             `json:"run_id"`
	Query        string             `json:"query"`
	Status       RunStatus          `json:"status"`
	Report       string             `json:"report,omitempty"`
	Caveats      string             `json:"caveats,omitempty"`
	Question     string             `json:"question,omitempty"`
	Options      []string           `json:"options,omitempty"`
	// FinishReason is the rationale of the FINISH that ended the run, if any.
	FinishReason string             `json:"finish_reason,omitempty"`
	Steps        int                `json:"steps"`
	TotalCost    float64            `json:"total_cost"`
	FinalFacts   Facts              `json:"final_facts"`
	History      []HistoryEntry     `json:"history"`
	Trajectory   []TrajectoryRecord `json:"trajectory,omitempty"`
	Decisions    []Decision         `json:"decisions,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	Duration     time.Duration      `json:"duration"`
}

// HasReport reports whether the run produced a report.
func (r RunResult) HasReport() bool {
	return r.Status == StatusSuccess
}
