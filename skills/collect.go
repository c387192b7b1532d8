package skills

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/scout/model"
)

// Defaults for Collect.
const (
	DefaultCollectWorkers = 4
	DefaultSearchTopK     = 50
	notFound              = "not found"
)

// Collect gathers evidence for every plan item, trying the local knowledge
// base before the web. Both search actions route here.
type Collect struct {
	runner    TemplateRunner
	retriever Retriever
	web       WebSearcher
	workers   int
	topK      int
	logger    *zap.Logger
}

// NewCollect creates the collection skill. Either collaborator may be nil;
// a nil retriever sends every item to the web.
func NewCollect(runner TemplateRunner, retriever Retriever, web WebSearcher, logger *zap.Logger) *Collect {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collect{
		runner:    runner,
		retriever: retriever,
		web:       web,
		workers:   DefaultCollectWorkers,
		topK:      DefaultSearchTopK,
		logger:    logger,
	}
}

// WithWorkers bounds how many items are collected at once.
func (c *Collect) WithWorkers(n int) *Collect {
	if n > 0 {
		c.workers = n
	}
	return c
}

// WithSearchTopK sets how many passages the retriever is asked for.
func (c *Collect) WithSearchTopK(k int) *Collect {
	if k > 0 {
		c.topK = k
	}
	return c
}

// Perform collects the current plan. With force_web set, a web-only copy of
// the plan is executed and reported as the effective plan; the run's plan
// is left as it was. The outcome succeeds when at least one item was found.
func (c *Collect) Perform(ctx context.Context, params model.Parameters, state *model.RunState) model.Outcome {
	plan := state.Facts.Plan
	if plan == nil || len(plan.RequiredInfo) == 0 {
		return model.Failed("no plan to collect", 0)
	}

	effective := plan.Clone()
	if params.Bool(model.ParamForceWeb) {
		c.logger.Info("forcing web search for all items")
		effective = plan.WebOnly()
	}

	local := c.localReady(ctx, effective)
	items := effective.RequiredInfo
	evidence := make([]model.Evidence, len(items))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, item := range items {
		g.Go(func() error {
			evidence[i] = c.collectItem(ctx, item, local)
			return nil
		})
	}
	_ = g.Wait() // items never return errors

	collected := make(map[string]model.Evidence, len(items))
	found := 0
	for i, item := range items {
		collected[item.Desc] = evidence[i]
		if evidence[i].Source != model.EvidenceFailed {
			found++
		}
	}

	c.logger.Info("collection finished", zap.Int("items", len(items)), zap.Int("found", found))
	facts := model.Facts{CollectedData: collected}
	if found == 0 {
		return model.Failed("no plan item could be collected", CostCollect).
			WithFacts(facts).
			WithEffectivePlan(effective)
	}
	return model.Completed(facts, CostCollect).WithEffectivePlan(effective)
}

// localReady reports whether the retriever can serve this plan. It only
// touches the retriever when some item prefers local data.
func (c *Collect) localReady(ctx context.Context, plan *model.Plan) bool {
	if c.retriever == nil {
		return false
	}
	wanted := false
	for _, item := range plan.RequiredInfo {
		if item.PrefersLocal() {
			wanted = true
			break
		}
	}
	if !wanted {
		return false
	}
	if err := c.retriever.Ready(ctx); err != nil {
		c.logger.Warn("local knowledge base unavailable", zap.Error(err))
		return false
	}
	return true
}

func (c *Collect) collectItem(ctx context.Context, item model.RequiredItem, local bool) model.Evidence {
	log := c.logger.With(zap.String("item", item.Desc))

	if local && item.PrefersLocal() {
		if text, ok := c.searchLocal(ctx, item.Desc, log); ok {
			return model.Evidence{Data: text, Source: model.EvidenceRAG}
		}
	}

	if c.web != nil {
		if text := c.web.Search(ctx, item.Desc); strings.TrimSpace(text) != "" {
			log.Debug("found on the web")
			return model.Evidence{Data: text, Source: model.EvidenceWeb}
		}
	}
	log.Debug("not found")
	return model.Evidence{Data: notFound, Source: model.EvidenceFailed}
}

// searchLocal returns local passages for desc when the evaluator judges
// them sufficient.
func (c *Collect) searchLocal(ctx context.Context, desc string, log *zap.Logger) (string, bool) {
	text, err := c.retriever.Search(ctx, desc, c.topK)
	if err != nil {
		log.Warn("local search failed", zap.Error(err))
		return "", false
	}
	if strings.TrimSpace(text) == "" || strings.Contains(text, model.NoResults) {
		log.Debug("no local results")
		return "", false
	}

	eval := c.runner.Execute(ctx, TemplateEvaluate, map[string]any{
		"query":   desc,
		"content": text,
	})
	if err := eval.Err(); err != nil {
		log.Warn("evaluation failed", zap.Error(err))
		return "", false
	}
	if !eval.Bool("is_sufficient") {
		log.Debug("local results insufficient", zap.String("reason", eval.String("reason")))
		return "", false
	}
	return text, true
}
