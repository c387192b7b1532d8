package skills

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// DefaultClarifyQuestion is asked when the model flags a gap but names none.
const DefaultClarifyQuestion = "Could you add more detail about what you want to know?"

// Chase checks whether the query is specific enough to research and, if
// not, prepares a question for the user.
type Chase struct {
	runner TemplateRunner
	logger *zap.Logger
}

// NewChase creates the integrity-check skill.
func NewChase(runner TemplateRunner, logger *zap.Logger) *Chase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chase{runner: runner, logger: logger}
}

// Perform runs the integrity check. Both verdicts are successful outcomes;
// an insufficient query yields NeedsInput with the question to ask.
func (c *Chase) Perform(ctx context.Context, _ model.Parameters, state *model.RunState) model.Outcome {
	facts := &state.Facts
	intent := rawOr(facts.Intent, "unknown")
	slots := map[string]json.RawMessage{
		"intent":   json.RawMessage(rawOr(facts.Intent, "{}")),
		"entities": json.RawMessage(rawOr(facts.Entities, "[]")),
	}

	resp := c.runner.Execute(ctx, TemplateChase, map[string]any{
		"original_query":     state.Query,
		"rewritten_query":    state.EffectiveQuery(),
		"intent":             intent,
		"current_slots_json": toJSON(slots, "{}"),
	})
	if err := resp.Err(); err != nil {
		return model.Failed(err.Error(), 0)
	}

	if resp.Bool("is_sufficient") {
		c.logger.Debug("query is sufficient")
		return model.Completed(model.Facts{IntegrityOK: model.Ptr(true)}, CostChase)
	}

	question := strings.TrimSpace(resp.String("suggested_question"))
	if question == "" {
		question = strings.TrimSpace(resp.String("reason"))
	}
	if question == "" {
		question = DefaultClarifyQuestion
	}
	options := stringList(resp["suggested_options"])
	if options == nil {
		options = []string{}
	}

	c.logger.Info("query needs clarification", zap.String("question", question), zap.Strings("options", options))
	return model.NeedsInput(model.Facts{
		IntegrityOK:       model.Ptr(false),
		SuggestedQuestion: model.Ptr(question),
		SuggestedOptions:  options,
	}, CostChase)
}
