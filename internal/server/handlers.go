package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/store"
)

type searchResult struct {
	ChunkID      string      `json:"chunk_id"`
	DocumentID   string      `json:"document_id"`
	Tier         string      `json:"tier"`
	Speaker      string      `json:"speaker,omitempty"`
	Text         string      `json:"text"`
	Span         *store.Span `json:"span,omitempty"`
	DenseScore   float64     `json:"dense_score"`
	LexicalScore float64     `json:"lexical_score"`
	FusedScore   float64     `json:"fused_score"`
	FullContent  bool        `json:"full_content,omitempty"`
}

type searchResponse struct {
	Results  []searchResult `json:"results"`
	Degraded bool           `json:"degraded"`
	Language string         `json:"language"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := s.cfg.RerankLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	res, err := s.retrieve(r, q, filter, limit)
	if err != nil {
		var invalid *retriever.InvalidQueryError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		log.Printf("Search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{
		Results:  make([]searchResult, 0, len(res.Candidates)),
		Degraded: res.Degraded,
		Language: res.Language,
	}
	for _, c := range res.Candidates {
		resp.Results = append(resp.Results, searchResult{
			ChunkID:      c.Chunk.ID,
			DocumentID:   c.Chunk.DocumentID,
			Tier:         string(c.Chunk.Tier),
			Speaker:      c.Chunk.Speaker,
			Text:         c.Chunk.Text,
			Span:         c.Chunk.Span,
			DenseScore:   c.DenseScore,
			LexicalScore: c.LexicalScore,
			FusedScore:   c.FusedScore,
			FullContent:  c.UseFullContent,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// retrieve runs the shared retrieve-then-rerank pipeline.
func (s *Server) retrieve(r *http.Request, q string, filter *store.Filter, limit int) (*retriever.Result, error) {
	res, err := s.retriever.Retrieve(r.Context(), q, retriever.Options{
		Limit:  s.cfg.RetrieveLimit,
		Filter: filter,
	})
	if err != nil {
		return nil, err
	}
	if s.reranker != nil {
		res.Candidates = s.reranker.Rerank(r.Context(), q, res.Candidates, limit)
	} else if len(res.Candidates) > limit {
		res.Candidates = res.Candidates[:limit]
	}
	return res, nil
}

func filterFromQuery(r *http.Request) (*store.Filter, error) {
	q := r.URL.Query()
	filter := &store.Filter{
		Speaker:    q.Get("speaker"),
		DocumentID: q.Get("document_id"),
		Source:     store.SourceKind(q.Get("source")),
		Tier:       store.Tier(q.Get("tier")),
	}

	for name, dst := range map[string]*time.Time{"after": &filter.After, "before": &filter.Before} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			// Bare dates are accepted too.
			ts, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return nil, errors.New(name + " must be RFC3339 or YYYY-MM-DD")
		}
		*dst = ts
	}

	if *filter == (store.Filter{}) {
		return nil, nil
	}
	return filter, nil
}

type documentInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Duration    float64   `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	Summary     string    `json:"summary,omitempty"`
	ContentMode string    `json:"content_mode"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context())
	if err != nil {
		log.Printf("Listing documents failed: %v", err)
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}

	out := make([]documentInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, docInfo(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Document(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		log.Printf("Loading document %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "loading document failed")
		return
	}

	chunks, err := s.store.DocumentChunks(r.Context(), id)
	if err != nil {
		log.Printf("Loading chunks for %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "loading document failed")
		return
	}

	info := docInfo(*doc)
	writeJSON(w, http.StatusOK, map[string]any{
		"document": info,
		"chunks":   len(chunks),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Document(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		log.Printf("Loading document %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "deleting document failed")
		return
	}

	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		log.Printf("Deleting document %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "deleting document failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func docInfo(d store.Document) documentInfo {
	return documentInfo{
		ID:          d.ID,
		Title:       d.Title,
		Source:      string(d.Source),
		Duration:    d.Duration,
		CreatedAt:   d.CreatedAt,
		Summary:     d.Summary,
		ContentMode: string(d.ContentMode),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
