package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/scout/model"
	"github.com/richinex/scout/templates"
)

// Sufficiency verdicts of the summarizer check.
const (
	VerdictSufficient   = "sufficient"
	VerdictPartial      = "partial"
	VerdictInsufficient = "insufficient"
)

// DefaultCaveat is attached to partial reports when the check gives none.
const DefaultCaveat = "Some data is missing; results are for reference only."

// Check is the summarizer's verdict on the collected data.
type Check struct {
	Verdict string
	Score   float64
	Missing []string
	Caveats string
}

// Summarize audits the collected data and writes the final report.
type Summarize struct {
	runner TemplateRunner
	strict bool
	logger *zap.Logger
}

// NewSummarize creates the summarize skill. In strict mode only a
// sufficient verdict leads to a report.
func NewSummarize(runner TemplateRunner, strict bool, logger *zap.Logger) *Summarize {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarize{runner: runner, strict: strict, logger: logger}
}

// Perform checks sufficiency and, if the mode allows, synthesizes the
// report. A refusal is a failed outcome listing the missing items so the
// run can collect more.
func (s *Summarize) Perform(ctx context.Context, _ model.Parameters, state *model.RunState) model.Outcome {
	facts := &state.Facts
	var required []model.RequiredItem
	if facts.Plan != nil {
		required = facts.Plan.RequiredInfo
	}
	collected := toJSON(facts.CollectedData, "{}")

	check, err := s.check(ctx, toJSON(required, "[]"), collected)
	if err != nil {
		return model.Failed(fmt.Sprintf("sufficiency check failed: %v", err), CostSummarizeRefusal)
	}
	s.logger.Info("sufficiency check",
		zap.String("verdict", check.Verdict),
		zap.Float64("score", check.Score),
		zap.Bool("strict", s.strict),
	)

	if !s.proceed(check.Verdict) {
		msg := fmt.Sprintf("insufficient data (%s)", check.Verdict)
		if len(check.Missing) > 0 {
			msg += ": " + strings.Join(check.Missing, "; ")
		}
		return model.Failed(msg, CostSummarizeRefusal).WithMissing(check.Missing)
	}

	caveat := ""
	if check.Verdict == VerdictPartial {
		caveat = check.Caveats
		if strings.TrimSpace(caveat) == "" {
			caveat = DefaultCaveat
		}
	}

	report, err := s.synthesize(ctx, state.Query, caveat, collected)
	if err != nil {
		return model.Failed(fmt.Sprintf("synthesis failed: %v", err), CostSummarizeRefusal)
	}
	if caveat != "" {
		report += "\n\nNote: " + caveat
	}

	out := model.Facts{Report: model.Ptr(report)}
	if caveat != "" {
		out.Caveats = model.Ptr(caveat)
	}
	return model.Completed(out, CostSummarize).WithComplete()
}

func (s *Summarize) proceed(verdict string) bool {
	if s.strict {
		return verdict == VerdictSufficient
	}
	return verdict == VerdictSufficient || verdict == VerdictPartial
}

func (s *Summarize) check(ctx context.Context, required, collected string) (Check, error) {
	resp := s.runner.Execute(ctx, TemplateCheck, map[string]any{
		"required_info":  required,
		"collected_data": collected,
	})
	if err := resp.Err(); err != nil {
		return Check{}, err
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.String("sufficiency_verdict")))
	switch verdict {
	case VerdictSufficient, VerdictPartial, VerdictInsufficient:
	default:
		verdict = VerdictInsufficient
	}
	var score float64
	switch v := resp["sufficiency_score"].(type) {
	case float64:
		score = v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			score = f
		}
	}
	return Check{
		Verdict: verdict,
		Score:   score,
		Missing: stringList(resp["missing_critical_items"]),
		Caveats: resp.String("caveats"),
	}, nil
}

func (s *Summarize) synthesize(ctx context.Context, query, caveat, collected string) (string, error) {
	caveats := caveat
	if caveats == "" {
		caveats = "none"
	}
	resp := s.runner.Execute(ctx, TemplateSynthesis, map[string]any{
		"user_query":     query,
		"caveats":        caveats,
		"validated_data": collected,
	})
	if resp.IsParseFailure() {
		// The model wrote prose instead of JSON; the prose is the report.
		if raw := strings.TrimSpace(resp.String(templates.KeyRawContent)); raw != "" {
			return raw, nil
		}
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	for _, key := range []string{"executive_summary", "report"} {
		if text := strings.TrimSpace(resp.String(key)); text != "" {
			return text, nil
		}
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(b), nil
}
