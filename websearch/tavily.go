// Package websearch provides the Tavily web search client used when the
// local knowledge base cannot answer.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults for the Tavily client.
const (
	DefaultEndpoint    = "https://api.tavily.com/search"
	DefaultRatePerSec  = 2.0
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second

	maxResults    = 3
	minContentLen = 50
	baseDelay     = 100 * time.Millisecond
	maxDelay      = 5 * time.Second
)

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Tavily searches the web through the Tavily API. It is safe for
// concurrent use; requests share one rate limiter.
type Tavily struct {
	apiKey      string
	endpoint    string
	client      *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// Option configures a Tavily client.
type Option func(*Tavily)

// WithEndpoint overrides the search URL.
func WithEndpoint(url string) Option {
	return func(t *Tavily) { t.endpoint = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tavily) { t.client = c }
}

// WithRate limits requests per second.
func WithRate(perSec float64) Option {
	return func(t *Tavily) {
		if perSec > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithMaxAttempts bounds attempts per search, the first included.
func WithMaxAttempts(n int) Option {
	return func(t *Tavily) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(d time.Duration) Option {
	return func(t *Tavily) { t.baseDelay = d }
}

// NewTavily creates a client. An empty apiKey yields a client whose
// searches always come back empty.
func NewTavily(apiKey string, logger *zap.Logger, opts ...Option) *Tavily {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tavily{
		apiKey:      apiKey,
		endpoint:    DefaultEndpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Search returns the answer and substantial result snippets for query,
// or "" when the search fails or finds nothing.
func (t *Tavily) Search(ctx context.Context, query string) string {
	log := t.logger.With(zap.String("query", query))
	if t.apiKey == "" {
		log.Warn("web search skipped: no Tavily API key")
		return ""
	}

	resp, err := t.search(ctx, query)
	if err != nil {
		log.Warn("web search failed", zap.Error(err))
		return ""
	}
	text := format(resp)
	log.Debug("web search done", zap.Int("results", len(resp.Results)), zap.Bool("empty", text == ""))
	return text
}

func (t *Tavily) search(ctx context.Context, query string) (searchResponse, error) {
	body, err := json.Marshal(searchRequest{
		Query:         query,
		SearchDepth:   "advanced",
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return searchResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return searchResponse{}, ctx.Err()
			case <-time.After(t.backoff(attempt)):
			}
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return searchResponse{}, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := t.do(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return searchResponse{}, err
		}
		t.logger.Debug("retrying web search", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return searchResponse{}, fmt.Errorf("failed after %d attempts: %w", t.maxAttempts, lastErr)
}

func (t *Tavily) do(ctx context.Context, body []byte) (searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return searchResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return searchResponse{}, ctx.Err()
		}
		return searchResponse{}, &retryableError{fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return searchResponse{}, &retryableError{fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return searchResponse{}, &retryableError{fmt.Errorf("server error (%d): %s", resp.StatusCode, preview(data))}
	case resp.StatusCode != http.StatusOK:
		return searchResponse{}, fmt.Errorf("API error (%d): %s", resp.StatusCode, preview(data))
	}

	var out searchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return searchResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return out, nil
}

// backoff returns the delay before the given retry attempt.
func (t *Tavily) backoff(attempt int) time.Duration {
	delay := t.baseDelay * time.Duration(1<<(attempt-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// format puts the answer first, then every result with enough content
// to be useful.
func format(resp searchResponse) string {
	var parts []string
	if answer := strings.TrimSpace(resp.Answer); answer != "" {
		parts = append(parts, "Answer: "+answer)
	}
	for _, r := range resp.Results {
		content := strings.TrimSpace(r.Content)
		if len([]rune(content)) <= minContentLen {
			continue
		}
		url := r.URL
		if url == "" {
			url = "unknown"
		}
		parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", url, content))
	}
	return strings.Join(parts, "\n\n")
}

func preview(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
