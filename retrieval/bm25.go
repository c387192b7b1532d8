package retrieval

import (
	"math"
	"sort"
)

// BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25 is an in-memory Okapi BM25 keyword index over chunk ids.
type bm25 struct {
	ids    []string
	freqs  []map[string]int
	lens   []int
	avgLen float64
	df     map[string]int
}

func newBM25(chunks []Chunk) *bm25 {
	idx := &bm25{
		ids:   make([]string, len(chunks)),
		freqs: make([]map[string]int, len(chunks)),
		lens:  make([]int, len(chunks)),
		df:    make(map[string]int),
	}
	total := 0
	for i, c := range chunks {
		terms := tokenize(c.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.df[t]++
		}
		idx.ids[i] = c.ID
		idx.freqs[i] = tf
		idx.lens[i] = len(terms)
		total += len(terms)
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(total) / float64(len(chunks))
	}
	return idx
}

func (idx *bm25) idf(term string) float64 {
	n := float64(len(idx.ids))
	df := float64(idx.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// search returns up to k chunk ids with a positive score, best first.
func (idx *bm25) search(query string, k int) []string {
	terms := tokenize(query)
	if len(terms) == 0 || len(idx.ids) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		i     int
		score float64
	}
	var hits []scored
	for i, tf := range idx.freqs {
		score := 0.0
		norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.lens[i])/idx.avgLen)
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			score += idx.idf(t) * f * (bm25K1 + 1) / (f + norm)
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = idx.ids[h.i]
	}
	return out
}
