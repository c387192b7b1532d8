package config

import (
	"os"
	"testing"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("LLM_MAX_TOKENS")
	os.Setenv("LLM_MAX_TOKENS", "not-a-number")
	defer os.Setenv("LLM_MAX_TOKENS", original)

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) == 0 {
		t.Error("expected at least one supported provider")
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("MAX_STEPS", "")
	t.Setenv("STRICT_MODE", "")
	t.Setenv("DEEPSEEK_MODEL", "")

	settings, err := New("deepseek")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Model != "deepseek-chat" {
		t.Errorf("expected model 'deepseek-chat', got %q", settings.LLM.Model)
	}
	if settings.Agent.MaxSteps != 15 {
		t.Errorf("expected max steps 15, got %d", settings.Agent.MaxSteps)
	}
	if settings.Agent.StrictMode {
		t.Error("strict mode should default to false")
	}
	if settings.LLM.AgentTemperature != 0.1 || settings.LLM.CreativeTemperature != 0.3 {
		t.Errorf("unexpected temperatures: %+v", settings.LLM)
	}
	if settings.Agent.CollectWorkers != 4 || settings.Agent.MaxClarifyRounds != 3 {
		t.Errorf("unexpected agent defaults: %+v", settings.Agent)
	}
	if settings.Retrieval.SearchTopK != 50 || settings.Retrieval.TopK != 5 {
		t.Errorf("unexpected retrieval defaults: %+v", settings.Retrieval)
	}
}

func TestNewFallsBackToEnvProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "google")

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", settings.LLM.Provider)
	}
}

func TestNewRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STRICT_MODE", "sometimes"},
		{"MAX_STEPS", "0"},
		{"COLLECT_WORKERS", "-1"},
		{"AGENT_TEMPERATURE", "warm"},
		{"WEB_RATE_PER_SEC", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestRetrievalEnabled(t *testing.T) {
	if (RetrievalConfig{}).Enabled() {
		t.Error("empty retrieval config should be disabled")
	}
	if !(RetrievalConfig{KnowledgeDir: "docs"}).Enabled() {
		t.Error("knowledge dir should enable retrieval")
	}
}
