package skills

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// Plan lists the information needed to answer the query.
type Plan struct {
	runner TemplateRunner
	logger *zap.Logger
}

// NewPlan creates the planning skill.
func NewPlan(runner TemplateRunner, logger *zap.Logger) *Plan {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plan{runner: runner, logger: logger}
}

// Perform asks the model for a plan. Items without a description are
// dropped and sources are normalized to lower case.
func (p *Plan) Perform(ctx context.Context, _ model.Parameters, state *model.RunState) model.Outcome {
	resp := p.runner.Execute(ctx, TemplatePlan, map[string]any{
		"rewritten_query": state.EffectiveQuery(),
		"entities":        rawOr(state.Facts.Entities, "[]"),
	})
	if err := resp.Err(); err != nil {
		return model.Failed(err.Error(), 0)
	}

	var plan model.Plan
	if err := resp.Decode(&plan); err != nil {
		return model.Failed(fmt.Sprintf("invalid plan: %v", err), CostPlan)
	}

	items := plan.RequiredInfo[:0]
	for _, item := range plan.RequiredInfo {
		item.Desc = strings.TrimSpace(item.Desc)
		item.Source = strings.ToLower(strings.TrimSpace(item.Source))
		if item.Desc != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return model.Failed("plan has no required items", CostPlan)
	}
	plan.RequiredInfo = items

	p.logger.Debug("plan ready", zap.Int("items", len(items)))
	return model.Completed(model.Facts{Plan: &plan}, CostPlan)
}
