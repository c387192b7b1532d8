package model

import "fmt"

// OutcomeStatus is the three-valued result of a skill invocation.
type OutcomeStatus int

const (
	// OutcomeCompleted means the skill did its work; its facts are merged.
	OutcomeCompleted OutcomeStatus = iota
	// OutcomeNeedsInput means the skill ran fine but the run cannot go on
	// without the user. Its facts are merged like a completed outcome.
	OutcomeNeedsInput
	// OutcomeFailed means the skill could not do its work; nothing is merged.
	OutcomeFailed
)

// String returns the status name.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNeedsInput:
		return "needs_input"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// Outcome is the immutable result of executing one Action.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	// Facts is the payload patch merged into the run's working facts.
	Facts Facts `json:"facts"`
	// Complete marks the run as finished (is_complete).
	Complete bool `json:"is_complete,omitempty"`
	// WaitUser marks an outcome that expects a user answer (is_wait_user).
	WaitUser bool `json:"is_wait_user,omitempty"`
	// Missing lists required items a sufficiency check found absent.
	Missing []string `json:"missing,omitempty"`
	// EffectivePlan is the plan a collection actually executed. Diagnostic
	// only; it is never merged into the run's facts.
	EffectivePlan *Plan   `json:"effective_plan,omitempty"`
	Cost          float64 `json:"cost"`
	Error         string  `json:"error,omitempty"`
}

// Completed creates a successful outcome carrying facts.
func Completed(facts Facts, cost float64) Outcome {
	return Outcome{Status: OutcomeCompleted, Facts: facts, Cost: cost}
}

// NeedsInput creates an outcome that asks the user for more information.
func NeedsInput(facts Facts, cost float64) Outcome {
	return Outcome{Status: OutcomeNeedsInput, Facts: facts, WaitUser: true, Cost: cost}
}

// Failed creates a failed outcome.
func Failed(err string, cost float64) Outcome {
	return Outcome{Status: OutcomeFailed, Error: err, Cost: cost}
}

// Failedf creates a failed outcome with a formatted message and zero cost.
func Failedf(format string, args ...any) Outcome {
	return Failed(fmt.Sprintf(format, args...), 0)
}

// WithComplete returns a copy flagged as run-completing.
func (o Outcome) WithComplete() Outcome {
	o.Complete = true
	return o
}

// WithMissing returns a copy carrying the missing item list.
func (o Outcome) WithMissing(missing []string) Outcome {
	o.Missing = append([]string{}, missing...)
	return o
}

// WithEffectivePlan returns a copy carrying the executed plan.
func (o Outcome) WithEffectivePlan(p *Plan) Outcome {
	o.EffectivePlan = p.Clone()
	return o
}

// WithFacts returns a copy carrying facts. Used by failed outcomes that
// still want to report what they gathered.
func (o Outcome) WithFacts(f Facts) Outcome {
	o.Facts = f
	return o
}

// Success reports whether the outcome's facts should be merged.
func (o Outcome) Success() bool {
	return o.Status != OutcomeFailed
}
