package model

import (
	"encoding/json"
	"sort"
)

// Fact names the fields of Facts as they appear on the wire and in prompts.
type Fact string

const (
	FactRewrittenQuery    Fact = "rewritten_query"
	FactEntities          Fact = "entities"
	FactIntent            Fact = "intent"
	FactIntegrityOK       Fact = "integrity_ok"
	FactSuggestedQuestion Fact = "suggested_question"
	FactSuggestedOptions  Fact = "suggested_options"
	FactPlan              Fact = "plan"
	FactCollectedData     Fact = "collected_data"
	FactReport            Fact = "report"
	FactCaveats           Fact = "caveats"
)

// Source preferences for a plan item.
const (
	SourceRAG     = "rag"
	SourceWebOnly = "web_only"
)

// Evidence sources recorded in collected data.
const (
	EvidenceRAG    = "RAG"
	EvidenceWeb    = "Web"
	EvidenceFailed = "Failed"
)

// RequiredItem is one piece of information the plan needs.
// An empty Source means "try the local store first".
type RequiredItem struct {
	Desc   string `json:"desc"`
	Source string `json:"source,omitempty"`
}

// PrefersLocal reports whether the local store should be tried before the web.
func (r RequiredItem) PrefersLocal() bool {
	return r.Source == "" || r.Source == SourceRAG
}

// Plan is the structured list of required information.
type Plan struct {
	RequiredInfo []RequiredItem `json:"required_info"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	items := make([]RequiredItem, len(p.RequiredInfo))
	copy(items, p.RequiredInfo)
	return &Plan{RequiredInfo: items}
}

// WebOnly returns a copy of the plan with every item forced to the web.
// The receiver is left untouched.
func (p *Plan) WebOnly() *Plan {
	out := p.Clone()
	if out == nil {
		return nil
	}
	for i := range out.RequiredInfo {
		out.RequiredInfo[i].Source = SourceWebOnly
	}
	return out
}

// Evidence is the collected answer for one plan item.
type Evidence struct {
	Data   string `json:"data"`
	Source string `json:"source"`
}

// Facts is the working memory of a run. Every field is optional; a nil
// field is absent. Fields are only ever set or (for CollectedData) extended.
type Facts struct {
	RewrittenQuery    *string             `json:"rewritten_query,omitempty"`
	Entities          json.RawMessage     `json:"entities,omitempty"`
	Intent            json.RawMessage     `json:"intent,omitempty"`
	IntegrityOK       *bool               `json:"integrity_ok,omitempty"`
	SuggestedQuestion *string             `json:"suggested_question,omitempty"`
	SuggestedOptions  []string            `json:"suggested_options,omitempty"`
	Plan              *Plan               `json:"plan,omitempty"`
	CollectedData     map[string]Evidence `json:"collected_data,omitempty"`
	Report            *string             `json:"report,omitempty"`
	Caveats           *string             `json:"caveats,omitempty"`
}

// Has reports whether the named fact is present.
func (f *Facts) Has(name Fact) bool {
	switch name {
	case FactRewrittenQuery:
		return f.RewrittenQuery != nil
	case FactEntities:
		return f.Entities != nil
	case FactIntent:
		return f.Intent != nil
	case FactIntegrityOK:
		return f.IntegrityOK != nil
	case FactSuggestedQuestion:
		return f.SuggestedQuestion != nil
	case FactSuggestedOptions:
		return f.SuggestedOptions != nil
	case FactPlan:
		return f.Plan != nil
	case FactCollectedData:
		return f.CollectedData != nil
	case FactReport:
		return f.Report != nil
	case FactCaveats:
		return f.Caveats != nil
	}
	return false
}

var allFacts = []Fact{
	FactRewrittenQuery, FactEntities, FactIntent, FactIntegrityOK,
	FactSuggestedQuestion, FactSuggestedOptions, FactPlan,
	FactCollectedData, FactReport, FactCaveats,
}

// Keys returns the sorted names of the present facts.
func (f *Facts) Keys() []Fact {
	keys := make([]Fact, 0, len(allFacts))
	for _, k := range allFacts {
		if f.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Empty reports whether no fact is present.
func (f *Facts) Empty() bool {
	return len(f.Keys()) == 0
}

// Merge folds patch into f. Present patch fields overwrite, except
// CollectedData which is merged item by item. Absent patch fields never
// clear anything.
func (f *Facts) Merge(patch Facts) {
	if patch.RewrittenQuery != nil {
		f.RewrittenQuery = Ptr(*patch.RewrittenQuery)
	}
	if patch.Entities != nil {
		f.Entities = cloneRaw(patch.Entities)
	}
	if patch.Intent != nil {
		f.Intent = cloneRaw(patch.Intent)
	}
	if patch.IntegrityOK != nil {
		f.IntegrityOK = Ptr(*patch.IntegrityOK)
	}
	if patch.SuggestedQuestion != nil {
		f.SuggestedQuestion = Ptr(*patch.SuggestedQuestion)
	}
	if patch.SuggestedOptions != nil {
		f.SuggestedOptions = append([]string{}, patch.SuggestedOptions...)
	}
	if patch.Plan != nil {
		f.Plan = patch.Plan.Clone()
	}
	if patch.CollectedData != nil {
		if f.CollectedData == nil {
			f.CollectedData = make(map[string]Evidence, len(patch.CollectedData))
		}
		for k, v := range patch.CollectedData {
			f.CollectedData[k] = v
		}
	}
	if patch.Report != nil {
		f.Report = Ptr(*patch.Report)
	}
	if patch.Caveats != nil {
		f.Caveats = Ptr(*patch.Caveats)
	}
}

// Clone returns a deep copy.
func (f Facts) Clone() Facts {
	var out Facts
	out.Merge(f)
	return out
}

// Ptr returns a pointer to v. Handy for building Facts literals.
func Ptr[T any](v T) *T {
	return &v
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

// NoResults is the text a retriever returns when nothing matched.
const NoResults = "No relevant documents found."
