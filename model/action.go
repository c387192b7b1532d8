// Package model provides the data vocabulary shared by the orchestrator,
// the skills and the storage layer.
package model

import (
	"fmt"
	"strings"
)

// ActionType enumerates the steps the orchestrator can take.
type ActionType string

const (
	ActionRewrite   ActionType = "rewrite"
	ActionChase     ActionType = "chase"
	ActionPlan      ActionType = "plan"
	ActionSearchDB  ActionType = "search_db"
	ActionSearchWeb ActionType = "search_web"
	ActionSummarize ActionType = "summarize"
	ActionFinish    ActionType = "finish"
)

// AllActions lists every action in declaration order.
var AllActions = []ActionType{
	ActionRewrite,
	ActionChase,
	ActionPlan,
	ActionSearchDB,
	ActionSearchWeb,
	ActionSummarize,
	ActionFinish,
}

// String returns the wire name of the action.
func (a ActionType) String() string {
	return string(a)
}

// ParseActionType parses an action name (case-insensitive, surrounding
// whitespace ignored).
func ParseActionType(s string) (ActionType, error) {
	name := ActionType(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range AllActions {
		if a == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

// Parameter names understood by the skills.
const (
	ParamForceWeb    = "force_web"
	ParamQuery       = "query"
	ParamUserProfile = "user_profile"
)

// Parameters holds the named arguments of an Action.
// Treat as read-only once attached to an Action.
type Parameters map[string]any

// Bool returns the boolean value of key. String values "true"/"1"/"yes"
// count as true since decision models are not always careful with types.
func (p Parameters) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

// String returns the string value of key, or def if absent or empty.
func (p Parameters) String(key, def string) string {
	if v, ok := p[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Clone returns a shallow copy.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return Parameters{}
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Action is a chosen next step with its parameters and the rationale
// supplied by whoever chose it.
type Action struct {
	Type       ActionType `json:"action"`
	Parameters Parameters `json:"parameters,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// NewAction creates an action carrying a private copy of params.
func NewAction(t ActionType, params Parameters, reason string) Action {
	return Action{Type: t, Parameters: params.Clone(), Reason: reason}
}

// Finish creates a FINISH action with the given reason.
func Finish(reason string) Action {
	return Action{Type: ActionFinish, Parameters: Parameters{}, Reason: reason}
}
