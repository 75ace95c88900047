package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable signals a transient upstream embedding failure that
// survived the bounded retries. Ingestion persists the affected chunks
// vector-pending instead of blocking on it.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder defines the interface for generating dense text embeddings.
// Embed is a pure function of the input texts: identical text yields an
// identical vector regardless of batch boundaries, so calls are idempotent.
type Embedder interface {
	// Embed generates one vector per input text, positionally aligned.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// TokenEmbedder produces per-token vectors for late-interaction matching,
// along with the surface tokens, positionally aligned and of equal length.
type TokenEmbedder interface {
	// EmbedTokens returns one vector per surface token of the text.
	EmbedTokens(ctx context.Context, text string) (vectors [][]float32, tokens []string, err error)

	// Name returns the name/identifier of the token embedding model.
	Name() string
}
