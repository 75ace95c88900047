package retriever

import (
	"strings"

	"github.com/mybrainlabs/recall/internal/store"
)

// FullContentCharLimit is the upper bound on a document's full text for
// whole-document substitution. Larger documents always stay chunked even
// when the query asks for completeness.
const FullContentCharLimit = 50000

// IntentClassifier decides whether a query asks for exhaustive coverage of
// a recording rather than a specific fact from it.
type IntentClassifier interface {
	NeedsFullContent(query string) bool
}

// KeywordIntentClassifier detects completeness intent from bilingual
// surface markers. It is the default classifier; callers can swap in a
// model-backed one without touching retrieval.
type KeywordIntentClassifier struct{}

// Standalone words that signal the user wants everything, not a passage.
// German adjectives appear with their common inflections.
var completenessMarkers = []string{
	"gesamt", "gesamte", "gesamten", "gesamtes",
	"vollständig", "vollständige", "vollständigen",
	"komplett", "komplette", "kompletten",
	"wörtlich", "wörtliche", "alles",
	"entire", "complete", "full", "verbatim", "everything", "whole",
}

// Phrases that reference a recording as a unit, or ask for verbatim output.
var wholeDocumentPhrases = []string{
	"dieses gespräch", "dieses transkript", "dieses video",
	"diesem gespräch", "diesem transkript", "diesem video",
	"das ganze gespräch", "das ganze transkript", "das ganze video",
	"this conversation", "this transcript", "this video",
	"the whole conversation", "the whole transcript", "the whole video",
	"word for word", "wort für wort",
}

func (KeywordIntentClassifier) NeedsFullContent(query string) bool {
	lower := strings.ToLower(query)

	for _, phrase := range wholeDocumentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !isWordRune(r)
	}) {
		for _, marker := range completenessMarkers {
			if word == marker {
				return true
			}
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == 'ä' || r == 'ö' || r == 'ü' || r == 'ß' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// ShouldUseFullContent combines the classifier verdict with the document
// size ceiling.
func ShouldUseFullContent(classifier IntentClassifier, query string, doc *store.Document) bool {
	if doc == nil || doc.FullText == "" {
		return false
	}
	if len(doc.FullText) > FullContentCharLimit {
		return false
	}
	return classifier.NeedsFullContent(query)
}

// Words that are distinctly German; a single hit flips detection. Words
// that double as English ("was", "die", "hat") are deliberately absent.
var germanMarkers = map[string]bool{
	"der": true, "das": true, "und": true, "ist": true,
	"nicht": true, "ich": true, "wie": true, "wer": true,
	"wann": true, "warum": true, "über": true, "für": true, "mit": true,
	"wurde": true, "gesagt": true, "worüber": true, "welche": true,
	"gespräch": true, "zusammenfassung": true, "fasse": true,
}

// DetectLanguage classifies a query as German or English with a cheap
// stopword heuristic. English is the fallback.
func DetectLanguage(query string) string {
	lower := strings.ToLower(query)
	if strings.ContainsAny(lower, "äöüß") {
		return "de"
	}
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?;:\"'")
		if germanMarkers[word] {
			return "de"
		}
	}
	return "en"
}
