// Package ingest runs the write path: chunk a transcript, embed the
// chunks, and persist everything through the store. Each document is an
// independent unit of work; one failing document never poisons a batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/mybrainlabs/recall/internal/chunker"
	"github.com/mybrainlabs/recall/internal/embeddings"
	"github.com/mybrainlabs/recall/internal/store"
)

// Options tunes the precision-indexing side of ingestion.
type Options struct {
	// MaxTokenChunks caps how many detail chunks per document get token
	// embedding sets. Zero means no cap: every detail chunk under the
	// size ceiling is indexed. Negative disables token indexing.
	MaxTokenChunks int

	// TokenChunkMaxTokens skips token indexing for chunks above this
	// estimated size. Zero means 1000.
	TokenChunkMaxTokens int
}

func (o Options) withDefaults() Options {
	if o.TokenChunkMaxTokens <= 0 {
		o.TokenChunkMaxTokens = 1000
	}
	return o
}

// Result summarizes one document's ingestion.
type Result struct {
	DocumentID string
	Chunks     int

	// VectorPending is set when the dense embedder was unavailable and
	// the chunks were stored without vectors. They remain lexically
	// searchable and get re-embedded lazily at query time.
	VectorPending bool

	// TokenIndexed is how many detail chunks received token embedding sets.
	TokenIndexed int
}

// Pipeline chunks, embeds, and stores documents. The token embedder is
// optional; without one no precision index is built.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	tokens   embeddings.TokenEmbedder
	store    store.Store
	opts     Options
}

// NewPipeline creates an ingestion pipeline. tokens may be nil.
func NewPipeline(c *chunker.Chunker, embedder embeddings.Embedder, tokens embeddings.TokenEmbedder, st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		tokens:   tokens,
		store:    st,
		opts:     opts.withDefaults(),
	}
}

// Ingest processes one document end to end. A chunking failure or a
// non-transient embedding failure aborts just this document; a transient
// embedding outage stores the chunks vector-pending instead.
func (p *Pipeline) Ingest(ctx context.Context, doc store.Document, t chunker.Transcript) (*Result, error) {
	t.DocumentID = doc.ID
	chunks, err := p.chunker.Chunk(t)
	if err != nil {
		return nil, fmt.Errorf("chunking document %s: %w", doc.ID, err)
	}

	result := &Result{DocumentID: doc.ID, Chunks: len(chunks)}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	switch {
	case errors.Is(err, embeddings.ErrUnavailable):
		log.Printf("Embedder unavailable, storing %s vector-pending: %v", doc.ID, err)
		result.VectorPending = true
	case err != nil:
		return nil, fmt.Errorf("embedding document %s: %w", doc.ID, err)
	case len(vecs) != len(chunks):
		return nil, fmt.Errorf("embedding document %s: got %d vectors for %d chunks", doc.ID, len(vecs), len(chunks))
	default:
		for i := range chunks {
			chunks[i].Vector = vecs[i]
		}
		// The summary chunk's vector doubles as the document vector.
		doc.SummaryVec = vecs[0]
	}

	if doc.FullText == "" {
		doc.FullText = t.Text
	}
	if doc.Summary == "" {
		doc.Summary = chunks[0].Text
	}
	if doc.Duration == 0 {
		doc.Duration = t.Duration
	}

	if err := p.store.PutDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := p.store.PutChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if !result.VectorPending {
		result.TokenIndexed = p.indexTokens(ctx, chunks)
	}
	return result, nil
}

// indexTokens builds token embedding sets for detail chunks under the
// size ceiling, most important first, up to the optional cap. Failures
// here degrade precision reranking but never fail ingestion.
func (p *Pipeline) indexTokens(ctx context.Context, chunks []store.Chunk) int {
	if p.tokens == nil || p.opts.MaxTokenChunks < 0 {
		return 0
	}

	var eligible []store.Chunk
	for _, c := range chunks {
		if c.Tier == store.TierDetail && c.TokenCount <= p.opts.TokenChunkMaxTokens {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Importance > eligible[j].Importance
	})
	if p.opts.MaxTokenChunks > 0 && len(eligible) > p.opts.MaxTokenChunks {
		eligible = eligible[:p.opts.MaxTokenChunks]
	}

	indexed := 0
	for _, c := range eligible {
		vectors, tokens, err := p.tokens.EmbedTokens(ctx, c.Text)
		if err != nil {
			log.Printf("Token embedding for chunk %s failed, skipping precision index: %v", c.ID, err)
			if errors.Is(err, embeddings.ErrUnavailable) {
				break
			}
			continue
		}
		set := store.TokenEmbeddingSet{ChunkID: c.ID, Tokens: tokens, Vectors: vectors}
		if err := p.store.PutTokenEmbeddings(ctx, set); err != nil {
			log.Printf("Storing token embeddings for chunk %s failed: %v", c.ID, err)
			continue
		}
		indexed++
	}
	return indexed
}
