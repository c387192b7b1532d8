// Outcome contracts between skills.
//
// Each phase of the workflow expects the previous skill to have produced a
// particular fact. A contract names those facts per action so that a skill
// reporting success without delivering them is noticed in the logs instead
// of silently stalling the legality gate.

package orchestration

import (
	"fmt"
	"sync"
	"time"

	"github.com/richinex/scout/model"
)

// Contract defines the facts a successful outcome of an action must carry.
type Contract struct {
	Action model.ActionType
	// Required facts for a Completed outcome.
	Required []model.Fact
	// RequiredOnComplete facts are only expected when the outcome ends the run.
	RequiredOnComplete []model.Fact
	// MaxDuration, when non-zero, turns slow steps into warnings.
	MaxDuration time.Duration
}

// ValidationError describes one contract violation.
type ValidationError struct {
	Field     string `json:"field"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// ValidationResult contains the result of validation with detailed feedback.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// NewValidationSuccess creates a successful validation result.
func NewValidationSuccess() ValidationResult {
	return ValidationResult{Valid: true, Errors: []ValidationError{}, Warnings: []string{}}
}

// NewValidationFailure creates a failed validation result.
func NewValidationFailure(errors []ValidationError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errors, Warnings: []string{}}
}

// WithWarnings adds warnings to the validation result.
func (v ValidationResult) WithWarnings(warnings []string) ValidationResult {
	if warnings != nil {
		v.Warnings = warnings
	}
	return v
}

// Contracts holds outcome contracts keyed by action.
type Contracts struct {
	mu        sync.RWMutex
	contracts map[model.ActionType]Contract
}

// NewContracts creates an empty contract set.
func NewContracts() *Contracts {
	return &Contracts{contracts: make(map[model.ActionType]Contract)}
}

// DefaultContracts returns the contracts of the built-in workflow.
func DefaultContracts() *Contracts {
	c := NewContracts()
	c.Register(Contract{Action: model.ActionRewrite, Required: []model.Fact{model.FactRewrittenQuery}})
	c.Register(Contract{Action: model.ActionChase, Required: []model.Fact{model.FactIntegrityOK}})
	c.Register(Contract{Action: model.ActionPlan, Required: []model.Fact{model.FactPlan}})
	c.Register(Contract{Action: model.ActionSearchDB, Required: []model.Fact{model.FactCollectedData}})
	c.Register(Contract{Action: model.ActionSearchWeb, Required: []model.Fact{model.FactCollectedData}})
	c.Register(Contract{Action: model.ActionSummarize, RequiredOnComplete: []model.Fact{model.FactReport}})
	return c
}

// Register adds or replaces the contract for its action.
func (c *Contracts) Register(contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[contract.Action] = contract
}

// Get retrieves the contract for an action.
func (c *Contracts) Get(action model.ActionType) (Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, ok := c.contracts[action]
	return contract, ok
}

// Validate checks an outcome against the contract for action. Failed
// outcomes and actions without a contract are always valid.
func (c *Contracts) Validate(action model.ActionType, outcome model.Outcome, elapsed time.Duration) ValidationResult {
	contract, ok := c.Get(action)
	if !ok || !outcome.Success() {
		return NewValidationSuccess()
	}

	var warnings []string
	if contract.MaxDuration > 0 && elapsed > contract.MaxDuration {
		warnings = append(warnings, fmt.Sprintf(
			"execution time (%s) exceeded limit (%s)", elapsed.Round(time.Millisecond), contract.MaxDuration))
	}

	var errors []ValidationError
	check := func(facts []model.Fact) {
		for _, f := range facts {
			if !outcome.Facts.Has(f) {
				errors = append(errors, ValidationError{
					Field:     string(f),
					ErrorType: "MissingRequired",
					Message:   fmt.Sprintf("%s outcome is missing %s", action, f),
				})
			}
		}
	}
	// A NeedsInput outcome only has to carry what it asks about.
	if outcome.Status == model.OutcomeCompleted {
		check(contract.Required)
	}
	if outcome.Complete {
		check(contract.RequiredOnComplete)
	}

	if len(errors) == 0 {
		return NewValidationSuccess().WithWarnings(warnings)
	}
	return NewValidationFailure(errors).WithWarnings(warnings)
}
