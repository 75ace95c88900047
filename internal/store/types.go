package store

import "time"

// SourceKind identifies where a document came from.
type SourceKind string

const (
	SourceConversation SourceKind = "conversation"
	SourceVideo        SourceKind = "video"
	SourceNote         SourceKind = "note"
)

// ContentMode records whether a document's retrieval context is served from
// chunk excerpts, its full text, or a mix of both.
type ContentMode string

const (
	ModeChunked ContentMode = "chunked"
	ModeFull    ContentMode = "full"
	ModeHybrid  ContentMode = "hybrid"
)

// Tier is the granularity level of a chunk in the document hierarchy.
type Tier string

const (
	TierSummary Tier = "summary"
	TierTopic   Tier = "topic"
	TierDetail  Tier = "detail"
)

// Span is a half-open time range [Start, End) in seconds from the start of
// the recording.
type Span struct {
	Start float64
	End   float64
}

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Document is one ingested source (conversation, video, note). It is written
// once at ingestion and immutable afterwards, except for the lazily computed
// ContentMode.
type Document struct {
	ID          string
	Title       string
	Source      SourceKind
	Duration    float64 // seconds; 0 for untimed text
	CreatedAt   time.Time
	Summary     string
	SummaryVec  []float32
	FullText    string
	ContentMode ContentMode
}

// Chunk is a retrievable unit derived from exactly one document. Index is
// sequential and gap-free within the document and defines document order.
// ParentIndex points at the enclosing chunk one tier up (-1 for the summary
// chunk), so the hierarchy can be rebuilt without external state.
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	Tier        Tier
	Span        *Span // nil for untimed documents
	Speaker     string
	Text        string
	TokenCount  int
	Importance  float64 // [0,1], ranking tie-break only
	ParentIndex int

	// Vector is nil while the chunk is vector-pending; such chunks are
	// excluded from dense search but still reachable lexically.
	Vector []float32

	// HasTokenVectors is tracked explicitly rather than probed, so reranking
	// stays deterministic without a live token-embedding lookup per chunk.
	HasTokenVectors bool
}

// HasVector reports whether the chunk's dense vector has been computed.
func (c *Chunk) HasVector() bool { return len(c.Vector) > 0 }

// TokenEmbeddingSet holds one vector per surface token of a detail chunk,
// positionally aligned with Tokens. len(Tokens) == len(Vectors) always.
type TokenEmbeddingSet struct {
	ChunkID string
	Tokens  []string
	Vectors [][]float32
}

// LexicalHit is one result of the store's full-text query primitive.
// Score is the store's lexical relevance rank (BM25-style, higher is better).
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// VectorHit is one result of the store's vector similarity primitive.
type VectorHit struct {
	ChunkID    string
	Similarity float64
}

// Filter narrows search results by chunk and document metadata. Zero values
// mean "no constraint".
type Filter struct {
	Speaker    string
	DocumentID string
	Source     SourceKind
	Tier       Tier
	After      time.Time // document creation time, inclusive
	Before     time.Time // document creation time, exclusive
}
