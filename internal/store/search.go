package store

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
)

// overfetch compensates for post-filtering on document creation time, which
// neither engine can express natively.
const overfetch = 4

func (s *LocalStore) LexicalSearch(ctx context.Context, q, lang string, limit int, filter *Filter) ([]LexicalHit, error) {
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("text")
	if lang != "" {
		match.Analyzer = lang
	}

	full := buildLexicalQuery(match, filter)
	size := limit
	if filter.timeBound() {
		size *= overfetch
	}

	req := bleve.NewSearchRequestOptions(full, size, 0, false)
	res, err := s.lex.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: lexical search: %v", ErrUnavailable, err)
	}

	hits := make([]LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if !s.passesTimeFilter(hit.ID, filter) {
			continue
		}
		hits = append(hits, LexicalHit{ChunkID: hit.ID, Score: hit.Score})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func buildLexicalQuery(match *query.MatchQuery, filter *Filter) query.Query {
	terms := filterTerms(filter)
	if len(terms) == 0 {
		return match
	}
	parts := []query.Query{match}
	for field, val := range terms {
		tq := bleve.NewTermQuery(val)
		tq.SetField(field)
		parts = append(parts, tq)
	}
	return bleve.NewConjunctionQuery(parts...)
}

func (s *LocalStore) VectorSearch(ctx context.Context, vec []float32, limit int, filter *Filter) ([]VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}

	size := limit
	if filter.timeBound() {
		size *= overfetch
	}
	// chromem rejects nResults above the collection size.
	if count := s.dense.Count(); count == 0 {
		return nil, nil
	} else if size > count {
		size = count
	}

	results, err := s.dense.QueryEmbedding(ctx, vec, size, filterTerms(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrUnavailable, err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		if !s.passesTimeFilter(r.ID, filter) {
			continue
		}
		hits = append(hits, VectorHit{ChunkID: r.ID, Similarity: float64(r.Similarity)})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// filterTerms maps the exact-match filter fields onto the shared metadata
// keys used by both the lexical and dense indexes.
func filterTerms(filter *Filter) map[string]string {
	if filter == nil {
		return nil
	}
	terms := make(map[string]string)
	if filter.Speaker != "" {
		terms["speaker"] = filter.Speaker
	}
	if filter.DocumentID != "" {
		terms["document_id"] = filter.DocumentID
	}
	if filter.Source != "" {
		terms["source"] = string(filter.Source)
	}
	if filter.Tier != "" {
		terms["tier"] = string(filter.Tier)
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}

func (f *Filter) timeBound() bool {
	return f != nil && (!f.After.IsZero() || !f.Before.IsZero())
}

func (s *LocalStore) passesTimeFilter(chunkID string, filter *Filter) bool {
	if !filter.timeBound() {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.docMeta[s.chunkDoc[chunkID]]
	if !ok {
		return false
	}
	if !filter.After.IsZero() && meta.createdAt.Before(filter.After) {
		return false
	}
	if !filter.Before.IsZero() && !meta.createdAt.Before(filter.Before) {
		return false
	}
	return true
}
