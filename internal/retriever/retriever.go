// Package retriever runs hybrid retrieval over indexed recordings: a
// lexical full-text arm and a dense vector arm execute concurrently and
// their hits are fused into one ranked candidate list.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mybrainlabs/recall/internal/embeddings"
	"github.com/mybrainlabs/recall/internal/store"
)

// Options tunes a retrieval run.
type Options struct {
	// Limit is the maximum number of candidates to return.
	Limit int

	// ArmLimit is how many hits each arm fetches before fusion. Zero
	// means 2x Limit so fusion has overlap to work with.
	ArmLimit int

	// DenseTimeout bounds the dense arm. When it elapses the run
	// degrades to lexical-only instead of failing.
	DenseTimeout time.Duration

	Filter  *store.Filter
	Weights FusionWeights
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.ArmLimit <= 0 {
		o.ArmLimit = 2 * o.Limit
	}
	if o.DenseTimeout <= 0 {
		o.DenseTimeout = 5 * time.Second
	}
	if o.Weights == (FusionWeights{}) {
		o.Weights = DefaultFusionWeights()
	}
	return o
}

// Retriever answers queries against a Store using a dense embedder for the
// vector arm. The intent classifier decides when chunked retrieval should
// be bypassed in favor of whole documents.
type Retriever struct {
	store    store.Store
	embedder embeddings.Embedder
	intent   IntentClassifier
	now      func() time.Time
}

// New creates a Retriever. A nil classifier falls back to the keyword one.
func New(st store.Store, embedder embeddings.Embedder, intent IntentClassifier) *Retriever {
	if intent == nil {
		intent = KeywordIntentClassifier{}
	}
	return &Retriever{store: st, embedder: embedder, intent: intent, now: time.Now}
}

type lexicalResult struct {
	hits []store.LexicalHit
	err  error
}

type denseResult struct {
	hits []store.VectorHit
	err  error
}

// Retrieve runs both arms concurrently, fuses their hits, applies recency,
// and resolves the top candidates' chunks. An empty corpus or a query with
// no matches returns an empty candidate list, not an error. A dense arm
// failure degrades the result to lexical-only and flags it; a lexical arm
// failure fails the whole call.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &InvalidQueryError{Reason: "empty query"}
	}
	opts = opts.withDefaults()

	lang := DetectLanguage(query)

	lexCh := make(chan lexicalResult, 1)
	denseCh := make(chan denseResult, 1)

	go func() {
		hits, err := r.store.LexicalSearch(ctx, query, lang, opts.ArmLimit, opts.Filter)
		lexCh <- lexicalResult{hits: hits, err: err}
	}()
	go func() {
		denseCtx, cancel := context.WithTimeout(ctx, opts.DenseTimeout)
		defer cancel()
		hits, err := r.denseArm(denseCtx, query, opts)
		denseCh <- denseResult{hits: hits, err: err}
	}()

	lex := <-lexCh
	dense := <-denseCh

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lex.err != nil && dense.err != nil {
		return nil, fmt.Errorf("both retrieval arms failed: lexical: %v; dense: %w", lex.err, dense.err)
	}

	// A dead lexical arm means the store itself is unreachable; dense hits
	// alone would be an incomplete result presented as complete.
	if lex.err != nil {
		return nil, fmt.Errorf("lexical retrieval arm failed: %w", lex.err)
	}

	degraded := false
	if dense.err != nil {
		// Lexical evidence alone still answers most keyword queries.
		log.Printf("Dense retrieval arm unavailable, degrading to lexical-only: %v", dense.err)
		degraded = true
		dense.hits = nil
	}

	merged := fuse(lex.hits, dense.hits, opts.Weights)

	candidates := make([]Candidate, 0, len(merged))
	now := r.now()
	var pending []string
	for id, c := range merged {
		chunk, err := r.store.Chunk(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve candidate chunk: %w", err)
		}
		c.Chunk = *chunk
		if !chunk.HasVector() {
			pending = append(pending, id)
		}
		if doc, err := r.store.Document(ctx, chunk.DocumentID); err == nil {
			c.RecencyBoost = opts.Weights.Recency * recencyBoost(doc.CreatedAt, now)
			c.FusedScore += c.RecencyBoost
		}
		candidates = append(candidates, *c)
	}

	rank(candidates)
	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	result := &Result{Candidates: candidates, Degraded: degraded, Language: lang}
	r.markFullContent(ctx, query, result)

	if len(pending) > 0 && !degraded {
		go r.reembedPending(pending)
	}

	return result, nil
}

// denseArm embeds the query and searches the vector index. Vector-pending
// chunks are invisible to it until the lazy re-embed catches up.
func (r *Retriever) denseArm(ctx context.Context, query string, opts Options) ([]store.VectorHit, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vecs))
	}
	return r.store.VectorSearch(ctx, vecs[0], opts.ArmLimit, opts.Filter)
}

// markFullContent flips candidates to whole-document substitution when the
// query asks for exhaustive coverage, and records the decision on the
// document so repeat queries skip the check.
func (r *Retriever) markFullContent(ctx context.Context, query string, result *Result) {
	if !r.intent.NeedsFullContent(query) {
		return
	}
	decided := make(map[string]bool)
	for i := range result.Candidates {
		docID := result.Candidates[i].Chunk.DocumentID
		use, seen := decided[docID]
		if !seen {
			doc, err := r.store.Document(ctx, docID)
			if err != nil {
				continue
			}
			use = ShouldUseFullContent(r.intent, query, doc)
			decided[docID] = use
			mode := store.ModeChunked
			if use {
				mode = store.ModeFull
			}
			if doc.ContentMode != mode {
				if err := r.store.SetContentMode(ctx, docID, mode); err != nil {
					log.Printf("Failed to record content mode for %s: %v", docID, err)
				}
			}
		}
		result.Candidates[i].UseFullContent = use
	}
}

// reembedPending backfills dense vectors for chunks that were persisted
// vector-pending during an embedding outage. Runs in the background off a
// fresh context; failures just leave the chunks pending for the next try.
func (r *Retriever) reembedPending(chunkIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, id := range chunkIDs {
		chunk, err := r.store.Chunk(ctx, id)
		if err != nil || chunk.HasVector() {
			continue
		}
		vecs, err := r.embedder.Embed(ctx, []string{chunk.Text})
		if err != nil {
			log.Printf("Lazy re-embed of chunk %s failed: %v", id, err)
			return
		}
		if err := r.store.UpdateChunkVector(ctx, id, vecs[0]); err != nil {
			log.Printf("Failed to store re-embedded vector for chunk %s: %v", id, err)
		}
	}
}
