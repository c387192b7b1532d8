// Package llm provides shared data models for LLM providers.
package llm

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// Request is a single completion request. Zero values fall back to the
// provider's configured defaults.
type Request struct {
	Messages []ChatMessage
	// Temperature overrides the provider default when non-nil.
	Temperature *float32
	// MaxTokens overrides the provider default when positive.
	MaxTokens int
	// Format requests a structured response where the provider supports it.
	Format *ResponseFormat
}

// NewRequest creates a request from a system prompt and a user prompt.
// An empty system prompt is omitted.
func NewRequest(system, user string) Request {
	var msgs []ChatMessage
	if system != "" {
		msgs = append(msgs, SystemMessage(system))
	}
	msgs = append(msgs, UserMessage(user))
	return Request{Messages: msgs}
}

// WithTemperature returns a copy of the request using temperature t.
func (r Request) WithTemperature(t float32) Request {
	r.Temperature = &t
	return r
}

// WithMaxTokens returns a copy of the request capped at n tokens.
func (r Request) WithMaxTokens(n int) Request {
	r.MaxTokens = n
	return r
}

// WithJSON returns a copy of the request asking for a JSON object.
func (r Request) WithJSON() Request {
	r.Format = NewJSONObjectFormat()
	return r
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ResponseFormatType defines the type of response format.
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
)

// ParseResponseFormatType maps a template setting to a format type.
// Anything other than "json_object" is plain text.
func ParseResponseFormatType(s string) ResponseFormatType {
	if ResponseFormatType(s) == ResponseFormatJSONObject {
		return ResponseFormatJSONObject
	}
	return ResponseFormatText
}

// ResponseFormat specifies how the LLM should format its response.
type ResponseFormat struct {
	Type ResponseFormatType `json:"type"`
}

// NewTextFormat creates a text response format.
func NewTextFormat() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatText}
}

// NewJSONObjectFormat creates a JSON object response format.
func NewJSONObjectFormat() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONObject}
}

// IsJSON reports whether the format asks for a JSON object.
func (f *ResponseFormat) IsJSON() bool {
	return f != nil && f.Type == ResponseFormatJSONObject
}
