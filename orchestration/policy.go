package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	jsonutil "github.com/richinex/scout/internal/json"
	"github.com/richinex/scout/model"
)

// Policy chooses the next action for a run.
//
// Implementations should pick from legal; the orchestrator coerces any
// other choice to FINISH.
type Policy interface {
	SelectAction(ctx context.Context, state *model.RunState, legal []model.ActionType, maxSteps int) model.Action
}

// DecisionLog is implemented by policies that record their decisions.
type DecisionLog interface {
	Decisions() []model.Decision
}

// Completer is the slice of the LLM client the policy needs.
// *llm.Client satisfies it.
type Completer interface {
	JSON(ctx context.Context, system, user string, temperature float32) (string, error)
}

const (
	// DefaultPolicyTemperature keeps decisions close to deterministic.
	DefaultPolicyTemperature = float32(0.1)

	historyWindow      = 3
	decisionFactsLimit = 500
	reportMarker       = "(generated)"
)

const policySystemPrompt = `You are the controller of a research assistant. Each turn you choose exactly one next action from the legal actions you are given. Respond with a single JSON object and nothing else.`

// LLMPolicy asks a language model for the next action.
// Safe for concurrent use.
type LLMPolicy struct {
	client      Completer
	temperature float32
	logger      *zap.Logger

	mu        sync.Mutex
	decisions []model.Decision
}

// NewLLMPolicy creates a policy backed by client. A nil logger disables logging.
func NewLLMPolicy(client Completer, logger *zap.Logger) *LLMPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMPolicy{
		client:      client,
		temperature: DefaultPolicyTemperature,
		logger:      logger,
	}
}

// WithTemperature overrides the sampling temperature.
func (p *LLMPolicy) WithTemperature(t float32) *LLMPolicy {
	p.temperature = t
	return p
}

// policyResponse is the decision format the model is asked to produce.
type policyResponse struct {
	Action     string           `json:"action"`
	Parameters model.Parameters `json:"parameters"`
	Reason     string           `json:"reason"`
}

// SelectAction renders the decision prompt, calls the model and parses its
// choice. Any failure along the way yields FINISH with a diagnostic reason.
func (p *LLMPolicy) SelectAction(ctx context.Context, state *model.RunState, legal []model.ActionType, maxSteps int) model.Action {
	facts := AbbreviateFacts(&state.Facts)
	prompt := BuildPrompt(state, facts, legal, maxSteps)

	raw, err := p.client.JSON(ctx, policySystemPrompt, prompt, p.temperature)
	var action model.Action
	if err != nil {
		p.logger.Warn("policy call failed", zap.Int("step", state.StepCount+1), zap.Error(err))
		action = model.Finish(fmt.Sprintf("policy error: %v", err))
	} else {
		action = parseDecision(raw, legal)
	}

	p.record(model.Decision{
		Step:   state.StepCount + 1,
		Facts:  truncate(facts, decisionFactsLimit),
		Legal:  append([]model.ActionType{}, legal...),
		Action: action.Type,
		Reason: action.Reason,
		Prompt: prompt,
		Raw:    raw,
	})
	p.logger.Debug("policy decision",
		zap.Int("step", state.StepCount+1),
		zap.String("action", action.Type.String()),
		zap.String("reason", action.Reason),
	)
	return action
}

// Decisions returns a copy of every decision made so far.
func (p *LLMPolicy) Decisions() []model.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Decision{}, p.decisions...)
}

func (p *LLMPolicy) record(d model.Decision) {
	p.mu.Lock()
	p.decisions = append(p.decisions, d)
	p.mu.Unlock()
}

// parseDecision turns the model's raw output into an action.
func parseDecision(raw string, legal []model.ActionType) model.Action {
	resp, err := jsonutil.ExtractJSONFromResponse[policyResponse](raw)
	if err != nil {
		return model.Finish(fmt.Sprintf("unparsable decision: %v", err))
	}
	actionType, err := model.ParseActionType(resp.Action)
	if err != nil {
		return model.Finish(fmt.Sprintf("unknown action %q", resp.Action))
	}
	if !IsLegal(actionType, legal) {
		return model.Finish(fmt.Sprintf("illegal action %q, legal: %s", resp.Action, joinActions(legal)))
	}
	return model.NewAction(actionType, resp.Parameters, resp.Reason)
}

// AbbreviateFacts renders the facts as compact JSON for a prompt.
// Collected data is reduced to its item names and the report to a marker.
func AbbreviateFacts(f *model.Facts) string {
	view := make(map[string]any)
	for _, key := range f.Keys() {
		switch key {
		case model.FactRewrittenQuery:
			view[string(key)] = *f.RewrittenQuery
		case model.FactEntities:
			view[string(key)] = rawOrNull(f.Entities)
		case model.FactIntent:
			view[string(key)] = rawOrNull(f.Intent)
		case model.FactIntegrityOK:
			view[string(key)] = *f.IntegrityOK
		case model.FactSuggestedQuestion:
			view[string(key)] = *f.SuggestedQuestion
		case model.FactSuggestedOptions:
			view[string(key)] = f.SuggestedOptions
		case model.FactPlan:
			view[string(key)] = f.Plan
		case model.FactCollectedData:
			items := make([]string, 0, len(f.CollectedData))
			for k := range f.CollectedData {
				items = append(items, k)
			}
			sort.Strings(items)
			view[string(key)] = items
		case model.FactReport:
			view[string(key)] = reportMarker
		case model.FactCaveats:
			view[string(key)] = *f.Caveats
		}
	}
	b, err := json.Marshal(view)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildPrompt renders the decision prompt for the current state.
func BuildPrompt(state *model.RunState, facts string, legal []model.ActionType, maxSteps int) string {
	var history strings.Builder
	recent := state.RecentHistory(historyWindow)
	if len(recent) == 0 {
		history.WriteString("  (none)\n")
	}
	for _, h := range recent {
		status := "ok"
		if !h.Success {
			status = "failed"
			if h.Error != "" {
				status += ": " + h.Error
			}
		}
		fmt.Fprintf(&history, "  step %d: %s (%s)\n", h.Step, h.Action, status)
	}

	return fmt.Sprintf(`Task: %s
Step: %d/%d

Known facts:
%s

Recent history:
%s
Legal actions: %s

Rules:
- Choose exactly one action from the legal actions.
- search_db tries the local knowledge base first and falls back to the web; set "force_web": true in parameters to go straight to the web.
- search_web behaves like search_db; use it with "force_web": true after local data proved insufficient.
- Choose summarize once the collected data covers the plan.
- Choose finish once a report exists or a question for the user is pending.

Respond in this exact JSON format:
{"action": "<one legal action>", "parameters": {}, "reason": "<short rationale>"}`,
		state.Query,
		state.StepCount+1, maxSteps,
		facts,
		history.String(),
		joinActions(legal),
	)
}

func rawOrNull(r json.RawMessage) json.RawMessage {
	if len(r) == 0 || !json.Valid(r) {
		return json.RawMessage("null")
	}
	return r
}

func joinActions(actions []model.ActionType) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
