package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/richinex/scout/model"
)

const (
	contextHeader = "Relevant passages from the local knowledge base:"
	maxHighlights = 3
)

// figurePattern matches amounts, percentages and magnitudes such as
// "1,234.5 million", "12%" or "3.2 亿元".
var figurePattern = regexp.MustCompile(
	`\d[\d,]*(?:\.\d+)?\s*(?:%|percent\b|(?i:thousand|million|billion|trillion)\b|(?i:usd|eur|cny|rmb)\b|万元|亿元|元)`,
)

// cleanText joins lines broken by document extraction into single-spaced
// prose. Spaces between Han characters are dropped.
func cleanText(text string) string {
	fields := strings.Fields(text)
	var b strings.Builder
	for i, f := range fields {
		if i > 0 && !(endsHan(fields[i-1]) && startsHan(f)) {
			b.WriteByte(' ')
		}
		b.WriteString(f)
	}
	return b.String()
}

// highlights returns the first distinct figures found in text.
func highlights(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range figurePattern.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}

// formatContext renders passages for a prompt, numbered from 1.
func formatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return model.NoResults
	}
	lines := []string{contextHeader}
	for i, c := range chunks {
		text := cleanText(c.Text)
		header := fmt.Sprintf("[%d] source: %s", i+1, c.Source)
		if hs := highlights(text); len(hs) > 0 {
			header += " [key figures: " + strings.Join(hs, " | ") + "]"
		}
		lines = append(lines, header+"\n"+text+"\n")
	}
	return strings.Join(lines, "\n")
}

func startsHan(s string) bool {
	for _, r := range s {
		return isHan(r)
	}
	return false
}

func endsHan(s string) bool {
	r := []rune(s)
	return len(r) > 0 && isHan(r[len(r)-1])
}
