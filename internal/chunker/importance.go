package chunker

import (
	"strings"
	"unicode"
)

// Bilingual markers that historically correlate with passages users ask
// about later.
var importanceKeywords = []string{
	"wichtig", "important",
	"problem", "lösung", "solution",
	"frage", "question",
	"entscheidung", "decision",
	"ergebnis", "result",
}

// importanceScore assigns a heuristic in [0,1] per detail chunk based on
// keyword hits plus the density of numeric and named-entity-like tokens.
// With no signal at all it stays at the 0.5 default. The score is only a
// ranking tie-break, never a filter.
func importanceScore(text string) float64 {
	score := 0.5

	lower := strings.ToLower(text)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.15
			break
		}
	}

	if density := entityDensity(text); density > 0.05 {
		score += 0.2 * minFloat(density/0.25, 1)
	}

	if score > 1 {
		score = 1
	}
	return score
}

// entityDensity is the fraction of words that look like named entities
// (capitalized mid-sentence) or numeric content.
func entityDensity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	hits := 0
	sentenceStart := true
	for _, w := range words {
		r := firstLetter(w)
		switch {
		case hasDigit(w):
			hits++
		case !sentenceStart && unicode.IsUpper(r):
			hits++
		}
		sentenceStart = strings.ContainsAny(w, ".!?")
	}
	return float64(hits) / float64(len(words))
}

func firstLetter(w string) rune {
	for _, r := range w {
		if unicode.IsLetter(r) {
			return r
		}
	}
	return 0
}

func hasDigit(w string) bool {
	for _, r := range w {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
