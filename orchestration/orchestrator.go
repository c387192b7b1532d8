package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// Skill performs one kind of action.
//
// A skill treats state as read-only and reports everything it learned
// through the returned outcome. It never panics or returns an error past
// its boundary; failures become failed outcomes.
type Skill interface {
	Perform(ctx context.Context, params model.Parameters, state *model.RunState) model.Outcome
}

// SkillFunc adapts a function to the Skill interface.
type SkillFunc func(ctx context.Context, params model.Parameters, state *model.RunState) model.Outcome

// Perform calls f.
func (f SkillFunc) Perform(ctx context.Context, params model.Parameters, state *model.RunState) model.Outcome {
	return f(ctx, params, state)
}

// Skills bundles one skill per workflow phase.
type Skills struct {
	Rewrite   Skill
	Chase     Skill
	Plan      Skill
	Collect   Skill
	Summarize Skill
}

// Registry maps each action to its skill. Both search actions route to
// Collect. Nil skills are left out.
func (s Skills) Registry() map[model.ActionType]Skill {
	registry := make(map[model.ActionType]Skill, 6)
	add := func(a model.ActionType, skill Skill) {
		if skill != nil {
			registry[a] = skill
		}
	}
	add(model.ActionRewrite, s.Rewrite)
	add(model.ActionChase, s.Chase)
	add(model.ActionPlan, s.Plan)
	add(model.ActionSearchDB, s.Collect)
	add(model.ActionSearchWeb, s.Collect)
	add(model.ActionSummarize, s.Summarize)
	return registry
}

// DefaultMaxSteps bounds a run when the config leaves MaxSteps unset.
const DefaultMaxSteps = 15

// Config holds orchestrator configuration.
type Config struct {
	MaxSteps int
	// ForceWeb sets force_web on every search action.
	ForceWeb bool
	// Contracts checked after each step; nil uses DefaultContracts.
	Contracts *Contracts
}

// DefaultConfig returns default orchestrator configuration.
func DefaultConfig() Config {
	return Config{MaxSteps: DefaultMaxSteps}
}

// Orchestrator runs the decide/act/merge loop for one query at a time.
//
// An Orchestrator holds no per-run state and may serve concurrent runs as
// long as its policy and skills are safe for concurrent use.
type Orchestrator struct {
	policy    Policy
	skills    map[model.ActionType]Skill
	contracts *Contracts
	config    Config
	logger    *zap.Logger
}

// New creates an orchestrator. The registry is copied; actions without a
// skill fail when chosen.
func New(policy Policy, registry map[model.ActionType]Skill, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultMaxSteps
	}
	contracts := config.Contracts
	if contracts == nil {
		contracts = DefaultContracts()
	}
	skills := make(map[model.ActionType]Skill, len(registry))
	for a, s := range registry {
		skills[a] = s
	}
	return &Orchestrator{
		policy:    policy,
		skills:    skills,
		contracts: contracts,
		config:    config,
		logger:    logger,
	}
}

// MaxSteps returns the step budget of each run.
func (o *Orchestrator) MaxSteps() int {
	return o.config.MaxSteps
}

// Run drives query to a terminal status.
func (o *Orchestrator) Run(ctx context.Context, query string) model.RunResult {
	started := time.Now()
	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID))
	log.Info("run started", zap.String("query", query), zap.Int("max_steps", o.config.MaxSteps))

	var decisionsBefore int
	decisionLog, hasLog := o.policy.(DecisionLog)
	if hasLog {
		decisionsBefore = len(decisionLog.Decisions())
	}

	state := model.NewRunState(query)
	var (
		trajectory   []model.TrajectoryRecord
		finish       *model.Action
		cancelled    bool
		completedRun bool
	)

	for state.StepCount < o.config.MaxSteps {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		legal := LegalActions(&state.Facts)
		action := o.policy.SelectAction(ctx, state, legal, o.config.MaxSteps)
		if !IsLegal(action.Type, legal) {
			log.Warn("policy chose illegal action",
				zap.String("action", action.Type.String()),
				zap.String("legal", joinActions(legal)),
			)
			action = model.Finish(fmt.Sprintf("illegal action %q chosen, legal: %s", action.Type, joinActions(legal)))
		}
		if action.Type == model.ActionFinish {
			finish = &action
			break
		}
		if o.config.ForceWeb && (action.Type == model.ActionSearchDB || action.Type == model.ActionSearchWeb) {
			action.Parameters = action.Parameters.Clone()
			action.Parameters[model.ParamForceWeb] = true
		}

		before := state.Snapshot()
		stepStart := time.Now()
		outcome := o.perform(ctx, action, state)
		elapsed := time.Since(stepStart)

		if v := o.contracts.Validate(action.Type, outcome, elapsed); !v.Valid || len(v.Warnings) > 0 {
			log.Warn("outcome contract",
				zap.String("action", action.Type.String()),
				zap.Any("errors", v.Errors),
				zap.Strings("warnings", v.Warnings),
			)
		}

		state.Apply(action, outcome)
		trajectory = append(trajectory, model.TrajectoryRecord{State: before, Action: action, Outcome: outcome})

		log.Debug("step done",
			zap.Int("step", state.StepCount),
			zap.String("action", action.Type.String()),
			zap.String("status", outcome.Status.String()),
			zap.String("error", outcome.Error),
			zap.Duration("elapsed", elapsed),
		)

		if outcome.Success() && outcome.Complete {
			completedRun = true
			break
		}
	}

	result := model.RunResult{
		RunID:      runID,
		Query:      query,
		Steps:      state.StepCount,
		TotalCost:  state.AccumulatedCost,
		FinalFacts: state.Facts.Clone(),
		History:    state.Snapshot().History,
		Trajectory: trajectory,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if finish != nil {
		result.FinishReason = finish.Reason
	}
	facts := &state.Facts
	if facts.Report != nil {
		result.Report = *facts.Report
	}
	if facts.Caveats != nil {
		result.Caveats = *facts.Caveats
	}
	if facts.SuggestedQuestion != nil {
		result.Question = *facts.SuggestedQuestion
		result.Options = append([]string{}, facts.SuggestedOptions...)
	}
	result.Status = terminalStatus(facts, finish != nil, cancelled, completedRun)

	if hasLog {
		if all := decisionLog.Decisions(); len(all) >= decisionsBefore {
			result.Decisions = all[decisionsBefore:]
		}
	}

	log.Info("run finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps", result.Steps),
		zap.Float64("cost", result.TotalCost),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// perform runs the skill for action, or fails if none is registered.
func (o *Orchestrator) perform(ctx context.Context, action model.Action, state *model.RunState) model.Outcome {
	skill, ok := o.skills[action.Type]
	if !ok {
		return model.Failedf("no skill registered for action %s", action.Type)
	}
	return skill.Perform(ctx, action.Parameters, state)
}

// terminalStatus decides how a run ended. A report always wins; a run that
// ran out of budget is exhausted even if a question is pending, since the
// question was never surfaced by a FINISH.
func terminalStatus(facts *model.Facts, finished, cancelled, completed bool) model.RunStatus {
	switch {
	case facts.Report != nil:
		return model.StatusSuccess
	case cancelled:
		return model.StatusCancelled
	case finished && facts.SuggestedQuestion != nil:
		return model.StatusNeedInput
	case finished || completed:
		return model.StatusIncomplete
	default:
		return model.StatusExhausted
	}
}
