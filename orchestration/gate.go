// Package orchestration drives a query through the skill workflow.
//
// The workflow is not encoded as a step counter. Which actions are legal
// next depends only on which facts the run has gathered so far, so any
// skill that produces the right fact unblocks the next phase.
package orchestration

import "github.com/richinex/scout/model"

// LegalActions returns the actions permitted for the given facts.
// It depends only on which facts are present, never on their values.
func LegalActions(facts *model.Facts) []model.ActionType {
	switch {
	case !facts.Has(model.FactRewrittenQuery):
		return []model.ActionType{model.ActionRewrite}
	case !facts.Has(model.FactIntegrityOK) && !facts.Has(model.FactSuggestedQuestion):
		return []model.ActionType{model.ActionChase}
	case facts.Has(model.FactSuggestedQuestion):
		// A pending question must be surfaced before anything else happens.
		return []model.ActionType{model.ActionFinish}
	case !facts.Has(model.FactPlan):
		return []model.ActionType{model.ActionPlan}
	}

	legal := []model.ActionType{model.ActionSearchDB, model.ActionSearchWeb}
	if facts.Has(model.FactCollectedData) {
		legal = append(legal, model.ActionSummarize)
	}
	return legal
}

// IsLegal reports whether action is in legal. FINISH is always permitted.
func IsLegal(action model.ActionType, legal []model.ActionType) bool {
	if action == model.ActionFinish {
		return true
	}
	for _, a := range legal {
		if a == action {
			return true
		}
	}
	return false
}
