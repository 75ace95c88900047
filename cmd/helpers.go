package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/mybrainlabs/recall/internal/config"
	"github.com/mybrainlabs/recall/internal/embeddings"
	"github.com/mybrainlabs/recall/internal/reranker"
	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/store"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `recall init` to create a config file", err)
	}
	return cfg, nil
}

// openStore opens the local store under the configured data directory.
func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.OpenLocal(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store in %s: %w", cfg.DataDir, err)
	}
	return st, nil
}

// createEmbedder creates the dense embedder the config names, wrapped in
// retry so transient provider errors surface as ErrUnavailable.
func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	var inner embeddings.Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		inner = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel))
	case config.ProviderOllama:
		inner = embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, cfg.EmbeddingDimensions, "")
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return embeddings.WithRetry(inner, 3, time.Second), nil
}

// createTokenEmbedder returns the token-level embedder, or nil when the
// precision index is not configured.
func createTokenEmbedder(cfg *config.Config) embeddings.TokenEmbedder {
	if cfg.TokenModel == "" {
		return nil
	}
	return embeddings.NewColBERTEmbedder(cfg.TokenModel, cfg.TokenServerURL)
}

// createRetriever wires the hybrid retriever with the configured fusion
// weights.
func createRetriever(cfg *config.Config, st store.Store, embedder embeddings.Embedder) *retriever.Retriever {
	return retriever.New(st, embedder, nil)
}

// retrieveOptions maps config to retrieval options.
func retrieveOptions(cfg *config.Config, filter *store.Filter) retriever.Options {
	return retriever.Options{
		Limit:        cfg.Retrieval.Limit,
		DenseTimeout: time.Duration(cfg.Retrieval.DenseTimeoutMS) * time.Millisecond,
		Filter:       filter,
		Weights: retriever.FusionWeights{
			Dense:   cfg.Retrieval.WeightDense,
			Lexical: cfg.Retrieval.WeightLexical,
			Recency: cfg.Retrieval.WeightRecency,
		},
	}
}

// createReranker returns the token-level reranker, or nil when no precision
// index is configured.
func createReranker(cfg *config.Config, st store.Store) *reranker.Reranker {
	tokens := createTokenEmbedder(cfg)
	if tokens == nil {
		return nil
	}
	return reranker.New(st, tokens, reranker.Weights{
		Fused:  cfg.Retrieval.WeightFused,
		MaxSim: cfg.Retrieval.WeightMaxSim,
	})
}
