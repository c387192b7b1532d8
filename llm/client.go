// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
	"sync"
)

// TokenStats tracks token usage across every call made through a Client.
type TokenStats struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
	LLMCalls         int    `json:"llm_calls"`
	Failures         int    `json:"failures"`
}

// AddUsage adds token usage from an LLM call.
func (ts *TokenStats) AddUsage(usage *TokenUsage) {
	if usage == nil {
		return
	}
	ts.PromptTokens += usage.PromptTokens
	ts.CompletionTokens += usage.CompletionTokens
	ts.TotalTokens += usage.TotalTokens
}

// Client wraps a Provider and keeps usage statistics. Safe for concurrent use.
type Client struct {
	provider Provider

	mu    sync.Mutex
	stats TokenStats
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Complete sends a request and records its usage.
func (c *Client) Complete(ctx context.Context, req Request) (LLMResponse, error) {
	response, err := c.provider.Complete(ctx, req)

	c.mu.Lock()
	c.stats.LLMCalls++
	if err != nil {
		c.stats.Failures++
	} else {
		c.stats.AddUsage(response.Usage)
	}
	c.mu.Unlock()

	if err != nil {
		return LLMResponse{}, err
	}
	return response, nil
}

// JSON sends a prompt in JSON mode at the given temperature and returns the
// raw content.
func (c *Client) JSON(ctx context.Context, system, user string, temperature float32) (string, error) {
	response, err := c.Complete(ctx, NewRequest(system, user).WithTemperature(temperature).WithJSON())
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Stats returns a copy of the accumulated usage statistics.
func (c *Client) Stats() TokenStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
