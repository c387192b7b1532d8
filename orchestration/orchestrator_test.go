package orchestration

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/richinex/scout/model"
)

// scriptedPolicy returns a fixed sequence of actions, then FINISH.
type scriptedPolicy struct {
	mu      sync.Mutex
	actions []model.Action
	next    int
	legal   [][]model.ActionType
}

func script(types ...model.ActionType) *scriptedPolicy {
	p := &scriptedPolicy{}
	for _, t := range types {
		p.actions = append(p.actions, model.NewAction(t, nil, "scripted"))
	}
	return p
}

func (p *scriptedPolicy) SelectAction(_ context.Context, _ *model.RunState, legal []model.ActionType, _ int) model.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.legal = append(p.legal, legal)
	if p.next >= len(p.actions) {
		return model.Finish("script exhausted")
	}
	a := p.actions[p.next]
	p.next++
	return a
}

func fixed(outcome model.Outcome) Skill {
	return SkillFunc(func(context.Context, model.Parameters, *model.RunState) model.Outcome {
		return outcome
	})
}

var (
	rewriteOK = model.Completed(model.Facts{RewrittenQuery: model.Ptr("Q1'")}, 0.01)
	chaseOK   = model.Completed(model.Facts{IntegrityOK: model.Ptr(true)}, 0.01)
	chaseAsk  = model.NeedsInput(model.Facts{
		IntegrityOK:       model.Ptr(false),
		SuggestedQuestion: model.Ptr("which year?"),
		SuggestedOptions:  []string{"2023", "2024"},
	}, 0.01)
	planOK = model.Completed(model.Facts{Plan: &model.Plan{
		RequiredInfo: []model.RequiredItem{{Desc: "revenue"}},
	}}, 0.02)
	collectOK = model.Completed(model.Facts{CollectedData: map[string]model.Evidence{
		"revenue": {Data: "42", Source: model.EvidenceRAG},
	}}, 0.05)
	summarizePartial = model.Completed(model.Facts{
		Report:  model.Ptr("Revenue was 42."),
		Caveats: model.Ptr("Some data is missing; results are for reference only."),
	}, 0.02).WithComplete()
)

func workflow(chase model.Outcome) map[model.ActionType]Skill {
	return Skills{
		Rewrite:   fixed(rewriteOK),
		Chase:     fixed(chase),
		Plan:      fixed(planOK),
		Collect:   fixed(collectOK),
		Summarize: fixed(summarizePartial),
	}.Registry()
}

func TestRunSuccessEndsOnCompleteOutcome(t *testing.T) {
	policy := script(model.ActionRewrite, model.ActionChase, model.ActionPlan, model.ActionSearchDB, model.ActionSummarize)
	o := New(policy, workflow(chaseOK), DefaultConfig(), zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if result.Status != model.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.FinishReason)
	}
	if result.Steps != 5 {
		t.Errorf("expected 5 steps, got %d", result.Steps)
	}
	if result.Report != "Revenue was 42." || result.Caveats == "" {
		t.Errorf("unexpected report/caveats: %q / %q", result.Report, result.Caveats)
	}
	if len(result.Trajectory) != 5 || len(result.History) != 5 {
		t.Errorf("expected 5 trajectory records and history entries, got %d and %d",
			len(result.Trajectory), len(result.History))
	}
	if got := result.FinalFacts.CollectedData["revenue"].Source; got != model.EvidenceRAG {
		t.Errorf("expected RAG evidence, got %q", got)
	}
	if result.TotalCost < 0.109 || result.TotalCost > 0.111 {
		t.Errorf("expected cost 0.11, got %v", result.TotalCost)
	}
	// Five actions were scripted; the complete outcome must stop the loop
	// before the policy is asked a sixth time.
	if len(policy.legal) != 5 {
		t.Errorf("expected 5 policy calls, got %d", len(policy.legal))
	}
}

func TestRunNeedInputSurfacesQuestion(t *testing.T) {
	policy := script(model.ActionRewrite, model.ActionChase, model.ActionFinish)
	o := New(policy, workflow(chaseAsk), DefaultConfig(), zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if result.Status != model.StatusNeedInput {
		t.Fatalf("expected need_input, got %s", result.Status)
	}
	if result.Question != "which year?" || len(result.Options) != 2 {
		t.Errorf("unexpected question %q options %v", result.Question, result.Options)
	}
	if result.Report != "" || result.FinalFacts.Report != nil {
		t.Error("need_input run must not carry a report")
	}
	if last := policy.legal[len(policy.legal)-1]; len(last) != 1 || last[0] != model.ActionFinish {
		t.Errorf("a pending question should only allow finish, got %v", last)
	}
}

func TestRunIllegalActionBecomesFinish(t *testing.T) {
	policy := script(model.ActionPlan)
	o := New(policy, workflow(chaseOK), DefaultConfig(), zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if len(result.History) != 0 || result.Steps != 0 {
		t.Errorf("illegal attempt must not be recorded, history %v", result.History)
	}
	if result.Status != model.StatusIncomplete {
		t.Errorf("expected incomplete, got %s", result.Status)
	}
	if !strings.Contains(result.FinishReason, "illegal") {
		t.Errorf("expected the finish reason to name the fault, got %q", result.FinishReason)
	}
}

func TestRunBudgetExhausted(t *testing.T) {
	policy := script(model.ActionRewrite, model.ActionChase)
	o := New(policy, workflow(chaseAsk), Config{MaxSteps: 2}, zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if result.Status != model.StatusExhausted {
		t.Fatalf("expected exhausted, got %s", result.Status)
	}
	if result.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", result.Steps)
	}
	if result.Report != "" {
		t.Error("exhausted run should have no report")
	}
	if result.Question != "which year?" {
		t.Errorf("pending question should still be reported, got %q", result.Question)
	}
}

func TestRunMissingSkillFailsStep(t *testing.T) {
	registry := workflow(chaseOK)
	delete(registry, model.ActionPlan)
	policy := script(model.ActionRewrite, model.ActionChase, model.ActionPlan)
	o := New(policy, registry, DefaultConfig(), zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if result.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", result.Steps)
	}
	last := result.History[2]
	if last.Success || !strings.Contains(last.Error, "no skill registered") {
		t.Errorf("expected failed plan step, got %+v", last)
	}
	if result.Status != model.StatusIncomplete {
		t.Errorf("expected incomplete, got %s", result.Status)
	}
}

func TestRunForceWebSetsParameter(t *testing.T) {
	var seen model.Parameters
	registry := workflow(chaseOK)
	registry[model.ActionSearchDB] = SkillFunc(func(_ context.Context, p model.Parameters, _ *model.RunState) model.Outcome {
		seen = p
		return collectOK
	})
	policy := script(model.ActionRewrite, model.ActionChase, model.ActionPlan, model.ActionSearchDB)
	o := New(policy, registry, Config{MaxSteps: 10, ForceWeb: true}, zaptest.NewLogger(t))

	o.Run(context.Background(), "Q1")

	if !seen.Bool(model.ParamForceWeb) {
		t.Errorf("expected force_web parameter, got %v", seen)
	}
	if policy.actions[3].Parameters[model.ParamForceWeb] != nil {
		t.Error("policy's action parameters must not be mutated")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(script(model.ActionRewrite), workflow(chaseOK), DefaultConfig(), zaptest.NewLogger(t))
	result := o.Run(ctx, "Q1")

	if result.Status != model.StatusCancelled || result.Steps != 0 {
		t.Errorf("expected cancelled with no steps, got %s after %d", result.Status, result.Steps)
	}
}

func TestTrajectoryRecordsStateBeforeStep(t *testing.T) {
	policy := script(model.ActionRewrite, model.ActionChase)
	o := New(policy, workflow(chaseOK), DefaultConfig(), zaptest.NewLogger(t))

	result := o.Run(context.Background(), "Q1")

	if len(result.Trajectory) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Trajectory))
	}
	first := result.Trajectory[0]
	if first.State.StepCount != 0 || first.State.Facts.RewrittenQuery != nil {
		t.Errorf("first record should hold the initial state, got %+v", first.State)
	}
	if first.Action.Type != model.ActionRewrite || !first.Outcome.Success() {
		t.Errorf("unexpected first record: %+v", first)
	}
	if result.Trajectory[1].State.Facts.RewrittenQuery == nil {
		t.Error("second record should see the rewritten query")
	}
}
