package templates

import (
	"encoding/json"
	"fmt"
)

// Keys with a fixed meaning in a Response.
const (
	KeyError      = "error"
	KeyRawContent = "raw_content"
	KeyContent    = "content"

	// ErrJSONParseFail is the error value of a response whose model output
	// was not valid JSON.
	ErrJSONParseFail = "json_parse_fail"
)

// Response is the result of executing a template: the model's JSON object,
// {"content": text} for text templates, or {"error": message} on failure.
type Response map[string]any

// ErrorResponse creates a failed response.
func ErrorResponse(msg string) Response {
	return Response{KeyError: msg}
}

// Err returns the error carried by the response, or nil.
func (r Response) Err() error {
	v, ok := r[KeyError]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return fmt.Errorf("%s", s)
	}
	return fmt.Errorf("%v", v)
}

// IsParseFailure reports whether the model answered with invalid JSON.
func (r Response) IsParseFailure() bool {
	s, _ := r[KeyError].(string)
	return s == ErrJSONParseFail
}

// Decode re-decodes the response into v.
func (r Response) Decode(v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// String returns the string under key, or "".
func (r Response) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Bool returns the boolean under key. The strings "true" and "yes" count.
func (r Response) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	}
	return false
}

// Raw returns the JSON encoding of the value under key, or nil if absent.
func (r Response) Raw(key string) json.RawMessage {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
