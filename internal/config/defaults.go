package config

// DefaultExcludes are glob patterns skipped during ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"*.tmp",
	"*.log",
}

// DefaultConfig returns a Config with sensible defaults: OpenAI embeddings,
// a local store under .recall, and the stock answer-model routing table.
func DefaultConfig() *Config {
	return &Config{
		DataDir:             ".recall",
		EmbeddingProvider:   ProviderOpenAI,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		TokenModel:          "",
		TokenServerURL:      "",
		Retrieval: RetrievalConfig{
			Limit:          30,
			RerankLimit:    10,
			DenseTimeoutMS: 5000,
			WeightDense:    0.5,
			WeightLexical:  0.25,
			WeightRecency:  0.25,
			WeightFused:    0.6,
			WeightMaxSim:   0.4,
		},
		Router: RouterConfig{
			ReasoningModel:    "o3",
			LongContextModel:  "gpt-4o",
			DefaultModel:      "claude-sonnet-4-20250514",
			LongContextTokens: 50000,
		},
		Ingest: IngestConfig{
			Concurrency:         4,
			MaxTokenChunks:      0,
			TokenChunkMaxTokens: 1000,
			Exclude:             DefaultExcludes,
		},
		Server: ServerConfig{
			Port:           8808,
			AllowedOrigins: []string{"*"},
		},
		RequestsPerMinute: 0,
	}
}
