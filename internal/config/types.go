package config

// ProviderType identifies an embedding or answer provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level recall configuration, corresponding to .recall.yml.
type Config struct {
	// DataDir holds the local store (SQLite, lexical and dense indexes).
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	EmbeddingProvider   ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int          `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`

	// TokenModel enables the token-level precision index when non-empty.
	TokenModel     string `yaml:"token_model" koanf:"token_model"`
	TokenServerURL string `yaml:"token_server_url" koanf:"token_server_url"`

	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Router    RouterConfig    `yaml:"router" koanf:"router"`
	Ingest    IngestConfig    `yaml:"ingest" koanf:"ingest"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`

	// RequestsPerMinute rate-limits answer-model calls. Zero disables.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// RetrievalConfig tunes the hybrid retrieval and reranking stage.
type RetrievalConfig struct {
	Limit          int     `yaml:"limit" koanf:"limit"`
	RerankLimit    int     `yaml:"rerank_limit" koanf:"rerank_limit"`
	DenseTimeoutMS int     `yaml:"dense_timeout_ms" koanf:"dense_timeout_ms"`
	WeightDense    float64 `yaml:"weight_dense" koanf:"weight_dense"`
	WeightLexical  float64 `yaml:"weight_lexical" koanf:"weight_lexical"`
	WeightRecency  float64 `yaml:"weight_recency" koanf:"weight_recency"`
	WeightFused    float64 `yaml:"weight_fused" koanf:"weight_fused"`
	WeightMaxSim   float64 `yaml:"weight_maxsim" koanf:"weight_maxsim"`
}

// RouterConfig names the answer models per routing outcome.
type RouterConfig struct {
	ReasoningModel    string `yaml:"reasoning_model" koanf:"reasoning_model"`
	LongContextModel  string `yaml:"long_context_model" koanf:"long_context_model"`
	DefaultModel      string `yaml:"default_model" koanf:"default_model"`
	LongContextTokens int    `yaml:"long_context_tokens" koanf:"long_context_tokens"`
}

// IngestConfig tunes the write path.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" koanf:"concurrency"`

	// MaxTokenChunks caps token indexing per document; zero indexes every
	// detail chunk under the size ceiling.
	MaxTokenChunks      int      `yaml:"max_token_chunks" koanf:"max_token_chunks"`
	TokenChunkMaxTokens int      `yaml:"token_chunk_max_tokens" koanf:"token_chunk_max_tokens"`
	Exclude             []string `yaml:"exclude" koanf:"exclude"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port" koanf:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}
