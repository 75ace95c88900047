package chunker

import (
	"fmt"
	"strings"

	"github.com/mybrainlabs/recall/internal/store"
)

// ChunkingError marks input that cannot be chunked. It is fatal to the one
// document being ingested and never aborts a batch.
type ChunkingError struct {
	Reason string
}

func (e *ChunkingError) Error() string {
	return "chunking failed: " + e.Reason
}

// Utterance is one unit of a normalized transcript: a stretch of text by one
// speaker, optionally positioned in time.
type Utterance struct {
	Speaker string
	Start   float64 // seconds; 0 when untimed
	End     float64
	Text    string
}

// Transcript is the chunker's input: a document's full normalized text plus
// optional per-utterance speaker/time metadata.
type Transcript struct {
	DocumentID string
	Text       string
	Utterances []Utterance // optional; derived from Text when empty
	Duration   float64     // seconds; 0 when untimed
}

// Options controls chunk sizing. Token counts use the usual rough estimate
// of one token per four characters.
type Options struct {
	MinDetailTokens    int     // lower bound for a detail chunk (default 500)
	TargetDetailTokens int     // greedy cut point (default 750)
	MaxDetailTokens    int     // hard ceiling before snapping (default 1000)
	OverlapFraction    float64 // trailing overlap copied into the next chunk (default 0.15)
	TopicWindowSeconds float64 // topic aggregation window for timed input (default 600)
	TopicTokenBudget   int     // topic size for untimed input (default 4000)
	MinDocumentTokens  int     // below this the document cannot form a chunk (default 25)
}

func (o Options) withDefaults() Options {
	if o.MinDetailTokens <= 0 {
		o.MinDetailTokens = 500
	}
	if o.TargetDetailTokens <= 0 {
		o.TargetDetailTokens = 750
	}
	if o.MaxDetailTokens <= 0 {
		o.MaxDetailTokens = 1000
	}
	if o.OverlapFraction <= 0 {
		o.OverlapFraction = 0.15
	}
	if o.TopicWindowSeconds <= 0 {
		o.TopicWindowSeconds = 600
	}
	if o.TopicTokenBudget <= 0 {
		o.TopicTokenBudget = 4000
	}
	if o.MinDocumentTokens <= 0 {
		o.MinDocumentTokens = 25
	}
	return o
}

// Chunker splits one normalized transcript into the three-tier hierarchy:
// one summary chunk covering the whole document, topic chunks spanning
// roughly ten minutes each, and overlapping detail chunks aligned to
// utterance boundaries.
type Chunker struct {
	opts Options
}

// New creates a Chunker. Zero-valued options take their defaults.
func New(opts Options) *Chunker {
	return &Chunker{opts: opts.withDefaults()}
}

// Chunk produces the ordered chunk list for a transcript. Chunk indexes are
// gap-free: the summary chunk is index 0, topic chunks follow, then detail
// chunks in document order. Parent references run detail→topic→summary, so
// the hierarchy can be rebuilt from the list alone.
func (c *Chunker) Chunk(t Transcript) ([]store.Chunk, error) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return nil, &ChunkingError{Reason: "document text is empty"}
	}
	if estimateTokens(text) < c.opts.MinDocumentTokens {
		return nil, &ChunkingError{Reason: fmt.Sprintf(
			"document too short: %d tokens, need at least %d", estimateTokens(text), c.opts.MinDocumentTokens)}
	}

	utterances := t.Utterances
	if len(utterances) == 0 {
		utterances = sentencesAsUtterances(text)
	}
	timed := hasTimestamps(utterances)

	cores := c.splitDetailCores(utterances)
	c.assignSpans(cores, utterances, t.Duration, timed)

	var topics [][]int // topic -> indexes into cores
	if timed {
		topics = c.groupByWindow(cores)
	} else {
		topics = c.groupByTokenShare(cores)
	}

	docSpan := documentSpan(cores, timed)

	chunks := make([]store.Chunk, 0, 1+len(topics)+len(cores))
	chunks = append(chunks, store.Chunk{
		DocumentID:  t.DocumentID,
		Index:       0,
		Tier:        store.TierSummary,
		Span:        cloneSpan(docSpan),
		Text:        summaryText(text),
		Importance:  1.0,
		ParentIndex: -1,
	})

	topicIndexOfCore := make([]int, len(cores))
	for ti, coreIdxs := range topics {
		idx := 1 + ti
		var parts []string
		var span *store.Span
		for _, ci := range coreIdxs {
			parts = append(parts, cores[ci].text)
			span = unionSpan(span, cores[ci].span)
			topicIndexOfCore[ci] = idx
		}
		chunks = append(chunks, store.Chunk{
			DocumentID:  t.DocumentID,
			Index:       idx,
			Tier:        store.TierTopic,
			Span:        span,
			Text:        strings.Join(parts, " "),
			Importance:  0.8,
			ParentIndex: 0,
		})
	}

	detailBase := 1 + len(topics)
	for ci, core := range cores {
		text := core.text
		if ci > 0 {
			if overlap := c.overlapText(cores[ci-1]); overlap != "" {
				text = overlap + " " + text
			}
		}
		chunks = append(chunks, store.Chunk{
			DocumentID:  t.DocumentID,
			Index:       detailBase + ci,
			Tier:        store.TierDetail,
			Span:        cloneSpan(core.span),
			Speaker:     core.speaker,
			Text:        text,
			Importance:  importanceScore(text),
			ParentIndex: topicIndexOfCore[ci],
		})
	}

	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("%s:%d", t.DocumentID, chunks[i].Index)
		chunks[i].TokenCount = estimateTokens(chunks[i].Text)
	}
	return chunks, nil
}

// detailCore is a detail chunk before overlap is applied. Its span is the
// non-overlapping region the chunk owns; the overlap text prepended later is
// bookkeeping for retrieval, not part of the span.
type detailCore struct {
	utterances []Utterance
	text       string
	tokens     int
	speaker    string
	span       *store.Span
}

// splitDetailCores greedily packs whole utterances into detail chunks.
// A candidate split never lands inside an utterance: the cut snaps to the
// nearest utterance boundary, so a single oversized utterance becomes its
// own oversized chunk rather than being cut mid-sentence.
func (c *Chunker) splitDetailCores(utterances []Utterance) []detailCore {
	var cores []detailCore
	var current []Utterance
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, u := range current {
			texts[i] = u.Text
		}
		cores = append(cores, detailCore{
			utterances: current,
			text:       strings.Join(texts, " "),
			tokens:     currentTokens,
			speaker:    dominantSpeaker(current),
		})
		current = nil
		currentTokens = 0
	}

	for _, u := range utterances {
		tokens := estimateTokens(u.Text)
		if len(current) > 0 && currentTokens >= c.opts.MinDetailTokens &&
			currentTokens+tokens > c.opts.MaxDetailTokens {
			flush()
		}
		current = append(current, u)
		currentTokens += tokens
		if currentTokens >= c.opts.TargetDetailTokens {
			flush()
		}
	}
	flush()
	return cores
}

// assignSpans gives each core a contiguous time span so the union of detail
// spans exactly covers the document span. Untimed input gets no spans.
func (c *Chunker) assignSpans(cores []detailCore, utterances []Utterance, duration float64, timed bool) {
	if !timed || len(cores) == 0 {
		return
	}

	cursor := utterances[0].Start
	for i := range cores {
		last := cores[i].utterances[len(cores[i].utterances)-1]
		end := last.End
		if end < cursor {
			end = cursor
		}
		if i == len(cores)-1 && duration > end {
			end = duration
		}
		cores[i].span = &store.Span{Start: cursor, End: end}
		cursor = end
	}
}

// groupByWindow closes a topic once it spans the configured window,
// always at a detail-chunk boundary so no detail crosses a topic edge.
func (c *Chunker) groupByWindow(cores []detailCore) [][]int {
	var topics [][]int
	var current []int
	var windowStart float64
	started := false

	for i, core := range cores {
		if core.span == nil {
			current = append(current, i)
			continue
		}
		if !started {
			windowStart = core.span.Start
			started = true
		}
		current = append(current, i)
		if core.span.End-windowStart >= c.opts.TopicWindowSeconds {
			topics = append(topics, current)
			current = nil
			windowStart = core.span.End
		}
	}
	if len(current) > 0 {
		topics = append(topics, current)
	}
	return topics
}

// groupByTokenShare splits untimed documents into topics of approximately
// equal token count.
func (c *Chunker) groupByTokenShare(cores []detailCore) [][]int {
	total := 0
	for _, core := range cores {
		total += core.tokens
	}
	nTopics := (total + c.opts.TopicTokenBudget - 1) / c.opts.TopicTokenBudget
	if nTopics < 1 {
		nTopics = 1
	}
	share := (total + nTopics - 1) / nTopics

	var topics [][]int
	var current []int
	running := 0
	for i, core := range cores {
		current = append(current, i)
		running += core.tokens
		if running >= share && len(topics) < nTopics-1 {
			topics = append(topics, current)
			current = nil
			running = 0
		}
	}
	if len(current) > 0 {
		topics = append(topics, current)
	}
	return topics
}

// overlapText returns the trailing utterances of a core amounting to at most
// OverlapFraction of its token count, joined exactly as they appear at the
// end of that core's text. The caller copies it verbatim into the next
// chunk; retrieval tolerates the duplicated text.
func (c *Chunker) overlapText(core detailCore) string {
	budget := int(float64(core.tokens) * c.opts.OverlapFraction)
	if budget <= 0 {
		return ""
	}

	var texts []string
	used := 0
	for i := len(core.utterances) - 1; i >= 0; i-- {
		tokens := estimateTokens(core.utterances[i].Text)
		if used+tokens > budget {
			break
		}
		texts = append([]string{core.utterances[i].Text}, texts...)
		used += tokens
	}
	return strings.Join(texts, " ")
}

func dominantSpeaker(utterances []Utterance) string {
	counts := make(map[string]int)
	best := ""
	for _, u := range utterances {
		if u.Speaker == "" {
			continue
		}
		counts[u.Speaker] += estimateTokens(u.Text)
		if best == "" || counts[u.Speaker] > counts[best] {
			best = u.Speaker
		}
	}
	return best
}

func documentSpan(cores []detailCore, timed bool) *store.Span {
	if !timed || len(cores) == 0 {
		return nil
	}
	first, last := cores[0].span, cores[len(cores)-1].span
	if first == nil || last == nil {
		return nil
	}
	return &store.Span{Start: first.Start, End: last.End}
}

func unionSpan(a, b *store.Span) *store.Span {
	if a == nil {
		return cloneSpan(b)
	}
	if b == nil {
		return a
	}
	out := *a
	if b.Start < out.Start {
		out.Start = b.Start
	}
	if b.End > out.End {
		out.End = b.End
	}
	return &out
}

func cloneSpan(s *store.Span) *store.Span {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func hasTimestamps(utterances []Utterance) bool {
	for _, u := range utterances {
		if u.End > 0 {
			return true
		}
	}
	return false
}

// summaryText is a placeholder until the ingestion pipeline swaps in an
// LLM-written summary; the leading text is a usable stand-in for embedding.
func summaryText(text string) string {
	const maxChars = 1000
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// estimateTokens approximates token count as one token per four characters,
// which holds roughly for both German and English transcripts.
func estimateTokens(text string) int {
	return len(text) / 4
}
