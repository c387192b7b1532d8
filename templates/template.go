// Package templates executes skill templates: markdown prompt files with a
// YAML front matter header, rendered with variables and sent to a model.
//
// A template looks like:
//
//	---
//	name: leader_planning
//	temperature: 0.2
//	response_format: json_object
//	---
//	## System Prompt
//	You are ...
//
//	## User Prompt Template
//	Query: {rewritten_query}
package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/richinex/scout/llm"
)

// Section headings recognised in a template body.
const (
	SectionSystem = "System Prompt"
	SectionUser   = "User Prompt Template"
)

// ErrInvalidTemplate is returned for templates missing a required section.
var ErrInvalidTemplate = errors.New("invalid template")

// Meta is the front matter of a template.
type Meta struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	ResponseFormat string   `yaml:"response_format"`
}

// Template is a parsed skill template.
type Template struct {
	Meta
	System string
	User   string
}

// JSON reports whether the template asks for a JSON object response.
func (t Template) JSON() bool {
	return llm.ParseResponseFormatType(t.ResponseFormat) == llm.ResponseFormatJSONObject
}

var frontMatterDelim = []byte("---")

// Parse parses template source.
func Parse(data []byte) (Template, error) {
	var t Template
	body := data

	trimmed := bytes.TrimLeft(data, "\ufeff \t\r\n")
	if bytes.HasPrefix(trimmed, frontMatterDelim) {
		rest := trimmed[len(frontMatterDelim):]
		end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
		if end == -1 {
			return t, fmt.Errorf("%w: unterminated front matter", ErrInvalidTemplate)
		}
		if err := yaml.Unmarshal(rest[:end], &t.Meta); err != nil {
			return t, fmt.Errorf("%w: front matter: %v", ErrInvalidTemplate, err)
		}
		body = rest[end+1+len(frontMatterDelim):]
	}

	t.System = extractSection(string(body), SectionSystem)
	t.User = extractSection(string(body), SectionUser)
	if t.System == "" || t.User == "" {
		return t, fmt.Errorf("%w: missing %q or %q section", ErrInvalidTemplate, SectionSystem, SectionUser)
	}
	return t, nil
}

var sectionHeading = regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t]*$`)

// extractSection returns the text under "## name" up to the next "## " heading.
func extractSection(body, name string) string {
	matches := sectionHeading.FindAllStringSubmatchIndex(body, -1)
	for i, m := range matches {
		if body[m[2]:m[3]] != name {
			continue
		}
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		return strings.TrimSpace(body[m[1]:end])
	}
	return ""
}

// Render substitutes {key} placeholders in the user prompt. Longer keys
// are replaced first so {query} cannot clobber {user_query}. Strings are
// inserted verbatim; other values are JSON-encoded.
func (t Template) Render(vars map[string]any) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := t.User
	for _, k := range keys {
		placeholder := "{" + k + "}"
		if !strings.Contains(out, placeholder) {
			continue
		}
		out = strings.ReplaceAll(out, placeholder, formatValue(vars[k]))
	}
	return out
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.RawMessage:
		return string(val)
	case nil:
		return "null"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}
