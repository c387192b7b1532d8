package retrieval

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"what": true, "which": true, "who": true, "when": true, "where": true, "how": true,
}

// tokenize lowercases text and splits it into terms. Han characters carry
// no spaces between words, so each one is its own term.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		var latin []rune
		for _, r := range f {
			if isHan(r) {
				if len(latin) > 0 {
					terms = appendTerm(terms, string(latin))
					latin = latin[:0]
				}
				terms = append(terms, string(r))
				continue
			}
			latin = append(latin, r)
		}
		if len(latin) > 0 {
			terms = appendTerm(terms, string(latin))
		}
	}
	return terms
}

func appendTerm(terms []string, t string) []string {
	if len(t) < 2 || stopwords[t] {
		return terms
	}
	return append(terms, t)
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
