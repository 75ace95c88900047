package llm

import (
	"context"
	"sync"
	"time"
)

// refillPoll is how often a blocked request re-checks the bucket.
const refillPoll = 100 * time.Millisecond

// RateLimitedProvider wraps a Provider with a token bucket so ask and
// chat traffic stays under the vendor's requests-per-minute quota.
type RateLimitedProvider struct {
	provider Provider
	rpm      int

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// NewRateLimitedProvider allows at most rpm completions per minute
// through the wrapped provider; excess requests block until a slot
// frees up or their context expires.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider:   provider,
		rpm:        rpm,
		tokens:     rpm,
		lastRefill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		if r.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(refillPoll):
		}
	}
}

func (r *RateLimitedProvider) takeToken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(r.lastRefill).Seconds() * float64(r.rpm) / 60.0)
	if refill > 0 {
		r.tokens += refill
		if r.tokens > r.rpm {
			r.tokens = r.rpm
		}
		r.lastRefill = now
	}

	if r.tokens == 0 {
		return false
	}
	r.tokens--
	return true
}
