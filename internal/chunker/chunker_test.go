package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mybrainlabs/recall/internal/store"
)

// timedTranscript builds a conversation of n utterances, one every
// stepSeconds, each around tokensPer tokens.
func timedTranscript(n int, stepSeconds float64, tokensPer int) Transcript {
	sentence := strings.TrimSpace(strings.Repeat("word ", tokensPer*4/5))
	speakers := []string{"Anna", "Ben"}

	var utterances []Utterance
	var sb strings.Builder
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("Utterance %d says %s.", i, sentence)
		utterances = append(utterances, Utterance{
			Speaker: speakers[i%2],
			Start:   float64(i) * stepSeconds,
			End:     float64(i+1) * stepSeconds,
			Text:    text,
		})
		sb.WriteString(text)
		sb.WriteString(" ")
	}
	return Transcript{
		DocumentID: "doc-1",
		Text:       sb.String(),
		Utterances: utterances,
		Duration:   float64(n) * stepSeconds,
	}
}

func chunksByTier(chunks []store.Chunk) map[store.Tier][]store.Chunk {
	out := make(map[store.Tier][]store.Chunk)
	for _, c := range chunks {
		out[c.Tier] = append(out[c.Tier], c)
	}
	return out
}

func TestChunkRejectsEmptyAndTinyDocuments(t *testing.T) {
	c := New(Options{})

	_, err := c.Chunk(Transcript{DocumentID: "d", Text: "   "})
	var chunkErr *ChunkingError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkingError for empty text, got %v", err)
	}

	_, err = c.Chunk(Transcript{DocumentID: "d", Text: "too short to index"})
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkingError for tiny text, got %v", err)
	}
}

func TestChunkHierarchy(t *testing.T) {
	// 60 utterances, one per 60s, ~100 tokens each: a one-hour recording
	// of ~6000 tokens.
	tr := timedTranscript(60, 60, 100)
	chunks, err := New(Options{}).Chunk(tr)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}

	tiers := chunksByTier(chunks)
	if len(tiers[store.TierSummary]) != 1 {
		t.Fatalf("expected exactly one summary chunk, got %d", len(tiers[store.TierSummary]))
	}
	if len(tiers[store.TierTopic]) == 0 {
		t.Fatal("expected topic chunks")
	}
	if len(tiers[store.TierDetail]) < 2 {
		t.Fatalf("expected multiple detail chunks, got %d", len(tiers[store.TierDetail]))
	}

	// Indexes are gap-free and ordered summary, topics, details.
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.ID != fmt.Sprintf("doc-1:%d", i) {
			t.Errorf("chunk %d has id %q", i, c.ID)
		}
	}

	summary := chunks[0]
	if summary.ParentIndex != -1 {
		t.Errorf("summary parent = %d, want -1", summary.ParentIndex)
	}
	if summary.Importance != 1.0 {
		t.Errorf("summary importance = %f, want 1.0", summary.Importance)
	}

	// Every topic points at the summary, every detail at its topic, and
	// the parent's span contains the child's.
	byIndex := make(map[int]store.Chunk)
	for _, c := range chunks {
		byIndex[c.Index] = c
	}
	for _, c := range chunks[1:] {
		parent, ok := byIndex[c.ParentIndex]
		if !ok {
			t.Fatalf("chunk %d has dangling parent %d", c.Index, c.ParentIndex)
		}
		switch c.Tier {
		case store.TierTopic:
			if parent.Tier != store.TierSummary {
				t.Errorf("topic %d parented to %s", c.Index, parent.Tier)
			}
		case store.TierDetail:
			if parent.Tier != store.TierTopic {
				t.Errorf("detail %d parented to %s", c.Index, parent.Tier)
			}
		}
		if c.Span != nil && parent.Span != nil && !parent.Span.Contains(*c.Span) {
			t.Errorf("chunk %d span %+v escapes parent span %+v", c.Index, *c.Span, *parent.Span)
		}
	}
}

func TestDetailSpansAreContiguous(t *testing.T) {
	tr := timedTranscript(60, 60, 100)
	chunks, err := New(Options{}).Chunk(tr)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}

	details := chunksByTier(chunks)[store.TierDetail]
	for i := 1; i < len(details); i++ {
		prev, cur := details[i-1].Span, details[i].Span
		if prev == nil || cur == nil {
			t.Fatal("timed input must produce spans")
		}
		if cur.Start != prev.End {
			t.Errorf("detail %d starts at %f, previous ends at %f", i, cur.Start, prev.End)
		}
	}

	first, last := details[0].Span, details[len(details)-1].Span
	if first.Start != 0 {
		t.Errorf("first detail starts at %f, want 0", first.Start)
	}
	if last.End != tr.Duration {
		t.Errorf("last detail ends at %f, want %f", last.End, tr.Duration)
	}
}

func TestDetailOverlapIsVerbatim(t *testing.T) {
	tr := timedTranscript(60, 60, 100)
	c := New(Options{})
	chunks, err := c.Chunk(tr)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}

	details := chunksByTier(chunks)[store.TierDetail]
	if len(details) < 2 {
		t.Fatal("need at least two detail chunks")
	}
	for i := 1; i < len(details); i++ {
		prev, cur := details[i-1], details[i]
		// The second chunk opens with text copied from the end of the
		// first chunk's own (non-overlapped) region.
		opening := cur.Text
		if len(opening) > 200 {
			opening = opening[:200]
		}
		probe := strings.Fields(opening)[0:5]
		if !strings.Contains(prev.Text, strings.Join(probe, " ")) {
			t.Errorf("detail %d does not open with text from detail %d", i, i-1)
		}
	}
}

func TestDetailChunkSizing(t *testing.T) {
	tr := timedTranscript(60, 60, 100)
	opts := Options{}
	chunks, err := New(opts).Chunk(tr)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}

	details := chunksByTier(chunks)[store.TierDetail]
	withDefaults := opts.withDefaults()
	// The overlap prefix can push a chunk past the core budget by at most
	// the overlap share.
	limit := int(float64(withDefaults.MaxDetailTokens) * (1 + withDefaults.OverlapFraction))
	for i, d := range details[:len(details)-1] {
		if d.TokenCount > limit {
			t.Errorf("detail %d has %d tokens, limit %d", i, d.TokenCount, limit)
		}
	}
}

func TestOversizedUtteranceBecomesOwnChunk(t *testing.T) {
	// One 2000-token utterance between normal ones must not be split.
	big := strings.TrimSpace(strings.Repeat("giant ", 1400))
	tr := Transcript{
		DocumentID: "doc-1",
		Text:       "Intro sentence. " + big + ". Closing sentence.",
		Utterances: []Utterance{
			{Start: 0, End: 10, Text: "Intro sentence."},
			{Start: 10, End: 600, Text: big + "."},
			{Start: 600, End: 610, Text: "Closing sentence."},
		},
		Duration: 610,
	}

	chunks, err := New(Options{}).Chunk(tr)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	found := false
	for _, c := range chunksByTier(chunks)[store.TierDetail] {
		if strings.Contains(c.Text, "giant giant") && strings.Contains(c.Text, big[len(big)-40:]) {
			found = true
		}
	}
	if !found {
		t.Error("oversized utterance was split across detail chunks")
	}
}

func TestUntimedDocumentHasNoSpans(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "Plain note line %d about various topics and ideas. ", i)
	}
	chunks, err := New(Options{}).Chunk(Transcript{DocumentID: "note-1", Text: sb.String()})
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	for _, c := range chunks {
		if c.Span != nil {
			t.Errorf("untimed chunk %d carries a span", c.Index)
		}
	}
	if len(chunksByTier(chunks)[store.TierTopic]) == 0 {
		t.Error("untimed documents still need topic chunks")
	}
}

func TestDominantSpeaker(t *testing.T) {
	utterances := []Utterance{
		{Speaker: "Anna", Text: strings.Repeat("a ", 200)},
		{Speaker: "Ben", Text: "short remark."},
		{Speaker: "Anna", Text: strings.Repeat("b ", 200)},
	}
	if got := dominantSpeaker(utterances); got != "Anna" {
		t.Errorf("dominant speaker = %q, want Anna", got)
	}
}
