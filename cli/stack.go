// Wiring of the research stack from settings.

package cli

import (
	"go.uber.org/zap"

	"github.com/richinex/scout/config"
	"github.com/richinex/scout/llm"
	"github.com/richinex/scout/orchestration"
	"github.com/richinex/scout/retrieval"
	"github.com/richinex/scout/skills"
	"github.com/richinex/scout/templates"
	"github.com/richinex/scout/websearch"
)

// stack is a fully wired orchestrator with the collaborators the CLI
// reports on.
type stack struct {
	orchestrator *orchestration.Orchestrator
	client       *llm.Client
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		BaseURL(settings.LLM.BaseURL).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.AgentTemperature)).
		APIKey(apiKey)
}

func newEngine(settings config.Settings, logger *zap.Logger) *retrieval.Engine {
	r := settings.Retrieval
	return retrieval.NewEngine(retrieval.Config{
		KnowledgeDir: r.KnowledgeDir,
		IndexPath:    r.IndexPath,
		Collection:   r.Collection,
		ChunkSize:    r.ChunkSize,
		TopK:         r.TopK,
	}, retrieval.OpenAICompatEmbedding(r.EmbeddingBaseURL, r.EmbeddingAPIKey, r.EmbeddingModel), logger)
}

func newStack(settings config.Settings, provider llm.Provider, forceWeb bool, logger *zap.Logger) *stack {
	client := llm.NewClient(provider)
	executor := templates.NewExecutor(templates.NewLoader(settings.Agent.SkillsDir), client, logger).
		WithTemperature(settings.LLM.CreativeTemperature)

	var retriever skills.Retriever
	if settings.Retrieval.Enabled() {
		retriever = newEngine(settings, logger)
	} else {
		logger.Info("no knowledge base configured, collecting from the web only")
	}

	var web skills.WebSearcher
	if settings.Web.TavilyAPIKey != "" {
		web = websearch.NewTavily(settings.Web.TavilyAPIKey, logger,
			websearch.WithRate(settings.Web.RatePerSec),
			websearch.WithMaxAttempts(settings.Web.MaxAttempts),
		)
	} else {
		logger.Warn("TAVILY_API_KEY not set, web search disabled")
	}

	registry := orchestration.Skills{
		Rewrite: skills.NewRewrite(executor, settings.Agent.UserProfile, logger),
		Chase:   skills.NewChase(executor, logger),
		Plan:    skills.NewPlan(executor, logger),
		Collect: skills.NewCollect(executor, retriever, web, logger).
			WithWorkers(settings.Agent.CollectWorkers).
			WithSearchTopK(settings.Retrieval.SearchTopK),
		Summarize: skills.NewSummarize(executor, settings.Agent.StrictMode, logger),
	}.Registry()

	policy := orchestration.NewLLMPolicy(client, logger).
		WithTemperature(float32(settings.LLM.AgentTemperature))

	return &stack{
		orchestrator: orchestration.New(policy, registry, orchestration.Config{
			MaxSteps: settings.Agent.MaxSteps,
			ForceWeb: forceWeb,
		}, logger),
		client: client,
	}
}
