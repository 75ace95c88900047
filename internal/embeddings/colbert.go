package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultColBERTBaseURL = "http://localhost:8901"

// ColBERTEmbedder produces per-token embeddings via a local late-interaction
// model server (a ColBERT checkpoint behind a small HTTP wrapper). Token
// vectors power the precision reranker; dense vectors still come from the
// regular Embedder.
type ColBERTEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewColBERTEmbedder creates a token embedder client.
// model is the checkpoint name (e.g. "colbert-ir/colbertv2.0").
// baseURL defaults to http://localhost:8901 if empty.
func NewColBERTEmbedder(model, baseURL string) *ColBERTEmbedder {
	if baseURL == "" {
		baseURL = defaultColBERTBaseURL
	}
	return &ColBERTEmbedder{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (e *ColBERTEmbedder) Name() string {
	return "colbert/" + e.model
}

type colbertRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type colbertResponse struct {
	Tokens     []string    `json:"tokens"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *ColBERTEmbedder) EmbedTokens(ctx context.Context, text string) ([][]float32, []string, error) {
	body, err := json.Marshal(colbertRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal colbert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed/tokens", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create colbert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("colbert server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result colbertResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nil, fmt.Errorf("decode colbert response: %w", err)
	}

	if len(result.Tokens) != len(result.Embeddings) {
		return nil, nil, fmt.Errorf("colbert returned %d tokens but %d embeddings",
			len(result.Tokens), len(result.Embeddings))
	}

	return result.Embeddings, result.Tokens, nil
}
