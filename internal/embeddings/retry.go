package embeddings

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryingEmbedder wraps an Embedder with bounded retries and linear
// backoff. Once the attempts are exhausted the final error is wrapped in
// ErrUnavailable so callers can fall back to vector-pending persistence.
type RetryingEmbedder struct {
	inner    Embedder
	attempts int
	backoff  time.Duration
}

// WithRetry wraps the embedder with up to attempts tries per call, sleeping
// backoff, 2*backoff, ... between failures.
func WithRetry(inner Embedder, attempts int, backoff time.Duration) *RetryingEmbedder {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingEmbedder{inner: inner, attempts: attempts, backoff: backoff}
}

func (e *RetryingEmbedder) Name() string {
	return e.inner.Name()
}

func (e *RetryingEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *RetryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * e.backoff
			log.Printf("Embedding attempt %d/%d failed, retrying in %v: %v",
				attempt, e.attempts, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vecs, err := e.inner.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
