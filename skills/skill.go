// Package skills adapts the model templates, the local knowledge engine and
// web search into the five workflow skills: rewrite, chase, plan, collect
// and summarize.
//
// Every skill reads the run state without modifying it and reports its
// findings as an outcome. External failures never escape a skill; they
// become failed outcomes.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/scout/templates"
)

// Template names used by the skills.
const (
	TemplateRewrite   = "semantic_rewrite"
	TemplateChase     = "chaser_integrity_check"
	TemplatePlan      = "leader_planning"
	TemplateEvaluate  = "info_evaluator"
	TemplateCheck     = "summarizer_check"
	TemplateSynthesis = "summarizer_synthesis"
)

// Step costs.
const (
	CostRewrite          = 0.01
	CostChase            = 0.01
	CostPlan             = 0.02
	CostCollect          = 0.05
	CostSummarize        = 0.02
	CostSummarizeRefusal = 0.01
)

// TemplateRunner executes a named template. *templates.Executor satisfies it.
type TemplateRunner interface {
	Execute(ctx context.Context, name string, vars map[string]any) templates.Response
}

// Retriever searches the local knowledge base.
type Retriever interface {
	// Ready initializes the retriever on first use. It returns an error
	// while the retriever cannot serve searches.
	Ready(ctx context.Context) error
	// Search returns formatted context for query, or model.NoResults.
	Search(ctx context.Context, query string, topK int) (string, error)
}

// WebSearcher searches the web. Search returns "" when it fails or finds
// nothing.
type WebSearcher interface {
	Search(ctx context.Context, query string) string
}

// stringList reads a list of strings from a loosely typed model answer.
// Objects contribute their first non-empty item, desc, description or
// name field.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch x := item.(type) {
		case string:
			if strings.TrimSpace(x) != "" {
				out = append(out, x)
			}
		case map[string]any:
			for _, key := range []string{"item", "desc", "description", "name"} {
				if s, ok := x[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, s)
					break
				}
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(x))
		}
	}
	return out
}

// toJSON encodes v for a prompt, falling back to def.
func toJSON(v any, def string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return def
	}
	return string(b)
}

// rawOr returns r as a string unless it is empty.
func rawOr(r json.RawMessage, def string) string {
	if len(r) == 0 {
		return def
	}
	return string(r)
}
