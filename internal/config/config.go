// Package config loads and validates the .recall.yml configuration, with
// RECALL_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config file location.
const DefaultPath = ".recall.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (RECALL_*). A missing file is fine; the
// defaults carry the whole configuration.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// RECALL_DATA_DIR -> data_dir, RECALL_ROUTER_DEFAULT_MODEL stays a
	// top-level key and wins only for flat fields.
	if err := k.Load(env.Provider("RECALL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RECALL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.EmbeddingProvider == "" {
		return fmt.Errorf("embedding_provider is required")
	}
	if !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of openai, ollama", c.EmbeddingProvider)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.EmbeddingProvider == ProviderOllama && c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions is required for ollama embeddings")
	}
	if c.TokenModel != "" && c.TokenServerURL == "" {
		return fmt.Errorf("token_server_url is required when token_model is set")
	}

	r := c.Retrieval
	if r.Limit <= 0 || r.RerankLimit <= 0 {
		return fmt.Errorf("retrieval limits must be positive")
	}
	if r.WeightDense < 0 || r.WeightLexical < 0 || r.WeightRecency < 0 ||
		r.WeightFused < 0 || r.WeightMaxSim < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}

	if c.Router.DefaultModel == "" {
		return fmt.Errorf("router.default_model is required")
	}
	if c.Router.LongContextTokens <= 0 {
		return fmt.Errorf("router.long_context_tokens must be positive")
	}

	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest.concurrency must be non-negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for the
// API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
