package llm

import (
	"fmt"
	"os"
	"strings"
)

// NewProvider creates an LLM provider of the given type.
// Supported provider types: "anthropic", "openai", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// ProviderForModel maps a routed model name to the provider that serves it:
// claude-* goes to Anthropic, everything else to OpenAI. Answer routing
// picks models, not providers, so this is where the two meet.
func ProviderForModel(model string) (Provider, error) {
	if strings.HasPrefix(model, "claude") {
		return NewProvider("anthropic", model)
	}
	return NewProvider("openai", model)
}
