// Package llm invokes the answer models the router selects. Each vendor
// sits behind one Complete contract so the ask command and the chat
// endpoint stay indifferent to which provider serves a routed model.
package llm

import "context"

// Provider turns an assembled prompt into an answer from one vendor.
// Implementations are safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the vendor: "anthropic", "openai", or "ollama".
	Name() string
}
