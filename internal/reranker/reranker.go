// Package reranker refines a fused candidate ranking with token-level
// late-interaction scoring. Only candidates carrying precomputed token
// embedding sets participate; the rest keep their fused standing.
package reranker

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/mybrainlabs/recall/internal/embeddings"
	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/store"
)

// Weights blends the coarse fused score with the token-level signal.
type Weights struct {
	Fused  float64
	MaxSim float64
}

// DefaultWeights keeps the fused ranking dominant; MaxSim reorders near
// ties rather than overruling the retrieval arms.
func DefaultWeights() Weights {
	return Weights{Fused: 0.6, MaxSim: 0.4}
}

// Reranker rescores retrieval candidates using a token embedder for the
// query side and stored token sets for the chunk side.
type Reranker struct {
	store   store.Store
	tokens  embeddings.TokenEmbedder
	weights Weights
}

// New creates a Reranker. Zero weights fall back to the defaults.
func New(st store.Store, tokens embeddings.TokenEmbedder, weights Weights) *Reranker {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Reranker{store: st, tokens: tokens, weights: weights}
}

// Rerank reorders candidates by a blend of their min-max scaled fused score
// and token-level MaxSim, returning at most limit. When no candidate has a
// token set, or the token embedder is unreachable, the input order is kept.
// Rerank never errors the query; precision is best-effort on top of a
// ranking that already works.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retriever.Candidate, limit int) []retriever.Candidate {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	if len(candidates) == 0 {
		return candidates
	}

	tokenSets := r.loadTokenSets(ctx, candidates)
	if len(tokenSets) == 0 {
		return candidates[:limit]
	}

	queryVecs, _, err := r.tokens.EmbedTokens(ctx, query)
	if err != nil || len(queryVecs) == 0 {
		if err != nil {
			log.Printf("Token embedder unavailable, keeping fused order: %v", err)
		}
		return candidates[:limit]
	}

	scaled := minMaxScale(candidates)
	type scored struct {
		cand     retriever.Candidate
		combined float64
	}
	rescored := make([]scored, len(candidates))
	for i, c := range candidates {
		combined := scaled[i]
		if set, ok := tokenSets[c.Chunk.ID]; ok {
			combined = r.weights.Fused*scaled[i] + r.weights.MaxSim*maxSim(queryVecs, set.Vectors)
		}
		rescored[i] = scored{cand: c, combined: combined}
	}

	// Stable keeps the fused order for exact combined-score ties.
	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].combined > rescored[j].combined
	})

	out := make([]retriever.Candidate, limit)
	for i := range out {
		out[i] = rescored[i].cand
	}
	return out
}

func (r *Reranker) loadTokenSets(ctx context.Context, candidates []retriever.Candidate) map[string]*store.TokenEmbeddingSet {
	sets := make(map[string]*store.TokenEmbeddingSet)
	for _, c := range candidates {
		if !c.Chunk.HasTokenVectors {
			continue
		}
		set, err := r.store.TokenEmbeddings(ctx, c.Chunk.ID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("Failed to load token embeddings for %s: %v", c.Chunk.ID, err)
			}
			continue
		}
		sets[c.Chunk.ID] = set
	}
	return sets
}

// minMaxScale maps fused scores onto [0,1] so they blend with MaxSim on a
// shared scale. A uniform slate scales to all ones.
func minMaxScale(candidates []retriever.Candidate) []float64 {
	lo, hi := candidates[0].FusedScore, candidates[0].FusedScore
	for _, c := range candidates[1:] {
		if c.FusedScore < lo {
			lo = c.FusedScore
		}
		if c.FusedScore > hi {
			hi = c.FusedScore
		}
	}

	scaled := make([]float64, len(candidates))
	if hi == lo {
		for i := range scaled {
			scaled[i] = 1
		}
		return scaled
	}
	for i, c := range candidates {
		scaled[i] = (c.FusedScore - lo) / (hi - lo)
	}
	return scaled
}
