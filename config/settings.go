// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	Agent     AgentConfig
	Retrieval RetrievalConfig
	Web       WebConfig
	Storage   StorageConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	MaxTokens uint32
	// AgentTemperature is used for decisions.
	AgentTemperature float64
	// CreativeTemperature is the default for skill templates.
	CreativeTemperature float64
}

// AgentConfig holds orchestration configuration.
type AgentConfig struct {
	MaxSteps         int
	StrictMode       bool
	MaxClarifyRounds int
	CollectWorkers   int
	SkillsDir        string
	UserProfile      string
}

// RetrievalConfig holds local knowledge engine configuration.
type RetrievalConfig struct {
	KnowledgeDir     string
	IndexPath        string
	Collection       string
	ChunkSize        int
	TopK             int
	SearchTopK       int
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingAPIKey  string
}

// Enabled reports whether a knowledge source or index is configured.
func (r RetrievalConfig) Enabled() bool {
	return r.KnowledgeDir != "" || r.IndexPath != ""
}

// WebConfig holds web search configuration.
type WebConfig struct {
	TavilyAPIKey string
	RatePerSec   float64
	MaxAttempts  int
}

// StorageConfig holds run persistence configuration.
type StorageConfig struct {
	DBPath string
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// DefaultProvider is used when neither a flag nor LLM_PROVIDER names one.
const DefaultProvider = "deepseek"

// New creates settings for the specified provider, loading values from environment variables.
// An empty provider falls back to LLM_PROVIDER, then DefaultProvider.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	if provider == "" {
		provider = getEnvString("LLM_PROVIDER", DefaultProvider)
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	var (
		s    Settings
		errs []error
	)
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.LLM.Provider = provider
	s.LLM.Model = getEnvString(info.modelEnv, info.defaultModel)
	s.LLM.BaseURL = os.Getenv("LLM_BASE_URL")
	s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", 4096)
	collect(err)
	s.LLM.AgentTemperature, err = getEnvFloat64("AGENT_TEMPERATURE", 0.1)
	collect(err)
	s.LLM.CreativeTemperature, err = getEnvFloat64("CREATIVE_TEMPERATURE", 0.3)
	collect(err)

	s.Agent.MaxSteps, err = getEnvInt("MAX_STEPS", 15)
	collect(err)
	s.Agent.StrictMode, err = getEnvBool("STRICT_MODE", false)
	collect(err)
	s.Agent.MaxClarifyRounds, err = getEnvInt("MAX_CLARIFY_ROUNDS", 3)
	collect(err)
	s.Agent.CollectWorkers, err = getEnvInt("COLLECT_WORKERS", 4)
	collect(err)
	s.Agent.SkillsDir = os.Getenv("SKILLS_DIR")
	s.Agent.UserProfile = os.Getenv("USER_PROFILE")

	s.Retrieval.KnowledgeDir = os.Getenv("KNOWLEDGE_DIR")
	s.Retrieval.IndexPath = os.Getenv("INDEX_PATH")
	s.Retrieval.Collection = getEnvString("INDEX_COLLECTION", "knowledge")
	s.Retrieval.ChunkSize, err = getEnvInt("CHUNK_SIZE", 800)
	collect(err)
	s.Retrieval.TopK, err = getEnvInt("RAG_TOP_K", 5)
	collect(err)
	s.Retrieval.SearchTopK, err = getEnvInt("RAG_SEARCH_TOP_K", 50)
	collect(err)
	s.Retrieval.EmbeddingBaseURL = getEnvString("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	s.Retrieval.EmbeddingModel = getEnvString("EMBEDDING_MODEL", "text-embedding-3-small")
	s.Retrieval.EmbeddingAPIKey = getEnvString("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY"))

	s.Web.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	s.Web.RatePerSec, err = getEnvFloat64("WEB_RATE_PER_SEC", 2)
	collect(err)
	s.Web.MaxAttempts, err = getEnvInt("WEB_MAX_ATTEMPTS", 3)
	collect(err)

	s.Storage.DBPath = getEnvString("DB_PATH", ".scout/runs.db")

	if len(errs) > 0 {
		return Settings{}, errs[0]
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks ranges that parsing alone cannot.
func (s Settings) Validate() error {
	switch {
	case s.Agent.MaxSteps <= 0:
		return fmt.Errorf("MAX_STEPS must be positive, got %d", s.Agent.MaxSteps)
	case s.Agent.CollectWorkers <= 0:
		return fmt.Errorf("COLLECT_WORKERS must be positive, got %d", s.Agent.CollectWorkers)
	case s.Agent.MaxClarifyRounds < 0:
		return fmt.Errorf("MAX_CLARIFY_ROUNDS must not be negative, got %d", s.Agent.MaxClarifyRounds)
	case s.Retrieval.ChunkSize <= 0:
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", s.Retrieval.ChunkSize)
	case s.Retrieval.TopK <= 0 || s.Retrieval.SearchTopK <= 0:
		return fmt.Errorf("RAG_TOP_K and RAG_SEARCH_TOP_K must be positive")
	case s.Web.RatePerSec <= 0:
		return fmt.Errorf("WEB_RATE_PER_SEC must be positive, got %v", s.Web.RatePerSec)
	case s.Web.MaxAttempts <= 0:
		return fmt.Errorf("WEB_MAX_ATTEMPTS must be positive, got %d", s.Web.MaxAttempts)
	}
	return nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
