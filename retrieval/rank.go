package retrieval

import "sort"

// rrfK damps the influence of top ranks in reciprocal rank fusion.
const rrfK = 60

type scoredID struct {
	ID    string
	Score float64
}

// fuse merges ranked id lists with reciprocal rank fusion.
func fuse(lists ...[]string) []scoredID {
	scores := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for rank, id := range list {
			if _, ok := scores[id]; !ok {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(rank+rrfK)
		}
	}

	out := make([]scoredID, len(order))
	for i, id := range order {
		out[i] = scoredID{ID: id, Score: scores[id]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// rerank reorders fused candidates by an even blend of their normalized
// fusion score and the share of query terms each passage contains.
func rerank(query string, candidates []scoredID, text func(id string) string) []scoredID {
	terms := unique(tokenize(query))
	if len(terms) == 0 || len(candidates) == 0 {
		return candidates
	}

	top := candidates[0].Score
	out := make([]scoredID, len(candidates))
	for i, c := range candidates {
		norm := 0.0
		if top > 0 {
			norm = c.Score / top
		}
		out[i] = scoredID{ID: c.ID, Score: 0.5*norm + 0.5*overlap(terms, text(c.ID))}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// overlap is the fraction of terms present in text.
func overlap(terms []string, text string) float64 {
	have := make(map[string]bool)
	for _, t := range tokenize(text) {
		have[t] = true
	}
	n := 0
	for _, t := range terms {
		if have[t] {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

func unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
