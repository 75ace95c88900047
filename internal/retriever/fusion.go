package retriever

import (
	"sort"
	"time"

	"github.com/mybrainlabs/recall/internal/store"
)

// FusionWeights controls how the two retrieval arms and the recency boost
// combine into a single score. Weights need not sum to one; the defaults do.
type FusionWeights struct {
	Dense   float64
	Lexical float64
	Recency float64
}

// DefaultFusionWeights favors dense similarity but keeps lexical evidence
// and freshness in play.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Dense: 0.5, Lexical: 0.25, Recency: 0.25}
}

const recencyHorizon = 365 * 24 * time.Hour

// recencyBoost decays linearly from 1 at now to 0 at one year of age.
func recencyBoost(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || !createdAt.Before(now) {
		if createdAt.IsZero() {
			return 0
		}
		return 1
	}
	age := now.Sub(createdAt)
	if age >= recencyHorizon {
		return 0
	}
	return 1 - float64(age)/float64(recencyHorizon)
}

// fuse merges the lexical and dense hit lists into scored candidates.
// A chunk found by both arms gets credit from both; the merge is
// order-independent, so concurrent arm completion order never changes
// the ranking.
func fuse(lexical []store.LexicalHit, dense []store.VectorHit, weights FusionWeights) map[string]*Candidate {
	merged := make(map[string]*Candidate, len(lexical)+len(dense))

	for _, hit := range lexical {
		c := merged[hit.ChunkID]
		if c == nil {
			c = &Candidate{Chunk: store.Chunk{ID: hit.ChunkID}}
			merged[hit.ChunkID] = c
		}
		c.LexicalScore = hit.Score
	}
	for _, hit := range dense {
		c := merged[hit.ChunkID]
		if c == nil {
			c = &Candidate{Chunk: store.Chunk{ID: hit.ChunkID}}
			merged[hit.ChunkID] = c
		}
		c.DenseScore = hit.Similarity
	}

	for _, c := range merged {
		lex := c.LexicalScore / 10
		if lex > 1 {
			lex = 1
		}
		c.FusedScore = weights.Dense*c.DenseScore + weights.Lexical*lex
	}
	return merged
}

// rank sorts candidates by fused score descending. Ties break on dense
// score, then lexical score, then chunk ID so equal-scored runs come out
// in a stable, reproducible order.
func rank(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.DenseScore != b.DenseScore {
			return a.DenseScore > b.DenseScore
		}
		if a.LexicalScore != b.LexicalScore {
			return a.LexicalScore > b.LexicalScore
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
