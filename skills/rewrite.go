package skills

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// Rewrite normalizes the query and extracts its entities and intent.
type Rewrite struct {
	runner  TemplateRunner
	profile string
	logger  *zap.Logger
}

// NewRewrite creates the rewrite skill. profile is the default user profile
// as JSON; empty means no profile.
func NewRewrite(runner TemplateRunner, profile string, logger *zap.Logger) *Rewrite {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(profile) == "" {
		profile = "{}"
	}
	return &Rewrite{runner: runner, profile: profile, logger: logger}
}

// Perform rewrites params["query"], or the run's query when absent.
// A malformed model answer passes the query through unchanged.
func (r *Rewrite) Perform(ctx context.Context, params model.Parameters, state *model.RunState) model.Outcome {
	query := params.String(model.ParamQuery, state.Query)
	profile := params.String(model.ParamUserProfile, r.profile)

	resp := r.runner.Execute(ctx, TemplateRewrite, map[string]any{
		"query":        query,
		"user_profile": profile,
	})

	if resp.IsParseFailure() {
		r.logger.Warn("rewrite answer unparsable, keeping query", zap.String("query", query))
		return model.Completed(model.Facts{
			RewrittenQuery: model.Ptr(query),
			Entities:       json.RawMessage(`[]`),
			Intent:         json.RawMessage(`{}`),
		}, CostRewrite)
	}
	if err := resp.Err(); err != nil {
		return model.Failed(err.Error(), 0)
	}

	rewritten := strings.TrimSpace(resp.String("step5_rewritten_query"))
	if rewritten == "" {
		rewritten = query
	}
	entities := resp.Raw("step2_entities")
	if entities == nil {
		entities = json.RawMessage(`[]`)
	}
	intent := resp.Raw("step1_intent")
	if intent == nil {
		intent = json.RawMessage(`{}`)
	}

	r.logger.Debug("query rewritten", zap.String("from", query), zap.String("to", rewritten))
	return model.Completed(model.Facts{
		RewrittenQuery: model.Ptr(rewritten),
		Entities:       entities,
		Intent:         intent,
	}, CostRewrite)
}
