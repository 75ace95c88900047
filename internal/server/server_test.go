package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mybrainlabs/recall/internal/llm"
	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/router"
	"github.com/mybrainlabs/recall/internal/store"
)

// stubEmbedder returns canned vectors keyed by exact text so dense
// similarity in tests is fully controlled.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			vec = []float32{0.1, 0.1, 0.1}
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Name() string    { return "stub" }

// stubProvider records the last completion request and returns a fixed
// answer.
type stubProvider struct {
	lastReq *llm.CompletionRequest
	content string
}

func (p *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.lastReq = &req
	return &llm.CompletionResponse{Content: p.content, Model: req.Model}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.OpenLocal("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	doc := store.Document{
		ID:        "doc-1",
		Title:     "Weekly sync",
		Source:    store.SourceConversation,
		Duration:  1800,
		CreatedAt: time.Now().Add(-24 * time.Hour),
		Summary:   "Team sync covering budget, office layout, and vacation plans.",
		FullText:  "Alice: We discussed the quarterly budget. Bob: The team talked about the new office layout.",
	}
	if err := st.PutDocument(ctx, doc); err != nil {
		t.Fatalf("storing document: %v", err)
	}

	chunks := []store.Chunk{
		{
			ID: "doc-1:1", DocumentID: "doc-1", Index: 1, Tier: store.TierDetail,
			Speaker: "Alice", Text: "We discussed the quarterly budget and the hiring plan.",
			TokenCount: 14, Importance: 0.65, ParentIndex: 0,
			Vector: []float32{1, 0, 0},
		},
		{
			ID: "doc-1:2", DocumentID: "doc-1", Index: 2, Tier: store.TierDetail,
			Speaker: "Bob", Text: "The team talked about the new office layout.",
			TokenCount: 11, Importance: 0.5, ParentIndex: 0,
			Vector: []float32{0, 1, 0},
		},
	}
	if err := st.PutChunks(ctx, chunks); err != nil {
		t.Fatalf("storing chunks: %v", err)
	}
	return st
}

// newTestServer wires a server over an in-memory store with a stub
// embedder and answer provider.
func newTestServer(t *testing.T, st store.Store, provider *stubProvider) *Server {
	t.Helper()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"quarterly budget": {1, 0, 0},
		"office layout":    {0, 1, 0},
	}}
	rt := retriever.New(st, emb, nil)
	answers := router.New(st, router.ModelPolicy{})

	var resolve ProviderResolver
	if provider != nil {
		resolve = func(model string) (llm.Provider, error) { return provider, nil }
	}
	return New(Config{Port: 0}, st, rt, nil, answers, resolve)
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	req := httptest.NewRequest("OPTIONS", "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("expected Access-Control-Allow-Origin header for localhost origin")
	}
}

func TestSearchReturnsRankedResults(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/api/search?q=quarterly+budget", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	if resp.Results[0].ChunkID != "doc-1:1" {
		t.Errorf("top result = %s, want doc-1:1", resp.Results[0].ChunkID)
	}
	if resp.Degraded {
		t.Error("expected non-degraded result")
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/api/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSearchRejectsBadDate(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/api/search?q=budget&after=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSearchSpeakerFilter(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/api/search?q=office+layout&speaker=Bob", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range resp.Results {
		if r.Speaker != "Bob" {
			t.Errorf("result %s has speaker %q, want Bob", r.ChunkID, r.Speaker)
		}
	}
}

func TestAsk(t *testing.T) {
	provider := &stubProvider{content: "The budget was discussed in the weekly sync."}
	srv := newTestServer(t, seedStore(t), provider)

	body, _ := json.Marshal(askRequest{Question: "quarterly budget"})
	w := doRequest(t, srv, "POST", "/api/ask", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ans answer
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ans.Text != provider.content {
		t.Errorf("answer = %q", ans.Text)
	}
	if ans.Sources == 0 {
		t.Error("expected sources to be reported")
	}
	if provider.lastReq == nil {
		t.Fatal("provider was not invoked")
	}
	if len(provider.lastReq.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(provider.lastReq.Messages))
	}
	if !strings.Contains(provider.lastReq.Messages[1].Content, "quarterly budget") {
		t.Error("user message should contain the question")
	}
}

func TestAskEmptyCorpusAnswersNoInformation(t *testing.T) {
	st, err := store.OpenLocal("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	provider := &stubProvider{content: "should not be used"}
	srv := newTestServer(t, st, provider)

	body, _ := json.Marshal(askRequest{Question: "what did we discuss"})
	w := doRequest(t, srv, "POST", "/api/ask", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ans answer
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ans.Text != router.NoInformationAnswer {
		t.Errorf("answer = %q, want the no-information response", ans.Text)
	}
	if provider.lastReq != nil {
		t.Error("provider should not be invoked without candidates")
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	srv := newTestServer(t, seedStore(t), &stubProvider{})

	body, _ := json.Marshal(askRequest{})
	w := doRequest(t, srv, "POST", "/api/ask", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDocumentEndpoints(t *testing.T) {
	srv := newTestServer(t, seedStore(t), nil)

	w := doRequest(t, srv, "GET", "/api/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var list struct {
		Documents []documentInfo `json:"documents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Documents) != 1 || list.Documents[0].ID != "doc-1" {
		t.Fatalf("documents = %+v", list.Documents)
	}

	w = doRequest(t, srv, "GET", "/api/documents/doc-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	w = doRequest(t, srv, "GET", "/api/documents/absent", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get absent: expected 404, got %d", w.Code)
	}

	w = doRequest(t, srv, "DELETE", "/api/documents/doc-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}

	w = doRequest(t, srv, "GET", "/api/documents/doc-1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}
