// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Per-request sampling overrides (temperature, token cap, JSON mode)

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations must be safe for concurrent use: skills issue
// completions from several goroutines at once.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Complete sends one completion request.
	Complete(ctx context.Context, req Request) (LLMResponse, error)
}
