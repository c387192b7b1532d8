// Package json provides JSON extraction utilities for parsing LLM responses.
//
// Models asked for JSON still wrap it in markdown fences or surround it with
// commentary. The helpers here find the first complete JSON object in such a
// response and decode it.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a response contains no decodable JSON object.
var ErrNoJSON = errors.New("no JSON object found")

// extractJSON finds and returns the JSON object in a response string.
// It handles:
// 1. Pure JSON response - returns the trimmed response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - the first balanced {...} that parses
//
// Braces inside string literals are ignored while balancing.
func extractJSON(response string) (string, error) {
	response = stripMarkdownCodeBlocks(response)

	if json.Valid([]byte(response)) && strings.HasPrefix(response, "{") {
		return response, nil
	}

	for start := strings.IndexByte(response, '{'); start != -1; {
		if end := matchBrace(response, start); end != -1 {
			candidate := response[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(response[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return "", fmt.Errorf("%w in response: %q", ErrNoJSON, preview(response, 100))
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes markdown code block markers from a response.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ExtractJSONFromResponse extracts and decodes the JSON object in an LLM
// response into a value of type T.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractObject extracts the JSON object in a response as a generic map.
func ExtractObject(response string) (map[string]any, error) {
	return ExtractJSONFromResponse[map[string]any](response)
}

// ExtractJSON extracts the JSON portion from a response string.
// Returns the raw JSON string suitable for further processing.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}
