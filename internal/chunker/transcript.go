package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

// Timestamps like [00:01:23], [1:23] or (1:23), as emitted by YouTube
// transcripts and most transcription tools.
var timestampRe = regexp.MustCompile(`^[\[\(](?:(\d{1,2}):)?(\d{1,2}):(\d{2})[\]\)]\s*`)

// Speaker labels like "Anna:" or "SPEAKER 2:" at the start of a line.
var speakerRe = regexp.MustCompile(`^([A-ZÄÖÜ][\wÄÖÜäöüß .-]{0,40}?):\s+`)

// ParseTranscript extracts per-utterance speaker and time metadata from a
// plain-text transcript. Each non-empty line becomes one utterance; lines
// without a timestamp inherit the running position. Returns nil when the
// text carries no recognizable structure, in which case the chunker falls
// back to sentence splitting.
func ParseTranscript(text string) []Utterance {
	var utterances []Utterance
	sawStructure := false
	sawTime := false
	cursor := 0.0
	speaker := ""

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		start := cursor
		if m := timestampRe.FindStringSubmatch(line); m != nil {
			start = parseTimestamp(m)
			line = line[len(m[0]):]
			sawStructure = true
			sawTime = true
		}

		if m := speakerRe.FindStringSubmatch(line); m != nil {
			speaker = strings.TrimSpace(m[1])
			line = line[len(m[0]):]
			sawStructure = true
		}

		if line == "" {
			continue
		}

		// Close any still-open utterances at this line's start time.
		for i := len(utterances) - 1; i >= 0 && utterances[i].End == 0; i-- {
			if start > utterances[i].Start {
				utterances[i].End = start
			}
		}

		utterances = append(utterances, Utterance{
			Speaker: speaker,
			Start:   start,
			Text:    line,
		})
		cursor = start
	}

	if !sawStructure {
		return nil
	}

	// The last utterance has no successor; give it a nominal duration
	// proportional to its length so spans stay half-open and non-empty.
	// Speaker-only transcripts stay untimed.
	if n := len(utterances); sawTime && n > 0 && utterances[n-1].End <= utterances[n-1].Start {
		utterances[n-1].End = utterances[n-1].Start + float64(estimateTokens(utterances[n-1].Text))
	}
	return utterances
}

func parseTimestamp(m []string) float64 {
	hours := 0
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	return float64(hours*3600 + minutes*60 + seconds)
}

var sentenceRe = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// sentencesAsUtterances splits plain text into sentence-level pseudo
// utterances so token-count-only chunking can still snap to natural
// boundaries.
func sentencesAsUtterances(text string) []Utterance {
	var utterances []Utterance
	consumed := 0
	for _, m := range sentenceRe.FindAllStringSubmatchIndex(text, -1) {
		sentence := strings.TrimSpace(text[m[2]:m[3]])
		if sentence != "" {
			utterances = append(utterances, Utterance{Text: sentence})
		}
		consumed = m[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		utterances = append(utterances, Utterance{Text: rest})
	}
	return utterances
}
