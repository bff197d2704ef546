package ragcore

// Config holds every configuration knob the system enumerates. It is built
// once at process start by DefaultConfig() and then overridden from an
// optional JSON file and from RAGCORE_* environment variables, mirroring the
// two-layer precedence used by the engine this module descends from.
type Config struct {
	// StoreDSN is the Postgres connection string passed to pgxpool.
	StoreDSN string `json:"store_dsn"`

	// Embedding/completion default model names (rag.embedding.default-model,
	// rag.completion.default-model). Used when neither a request override
	// nor a Library default supplies one.
	DefaultEmbeddingModel  string `json:"default_embedding_model"`
	DefaultCompletionModel string `json:"default_completion_model"`

	Pool      PoolConfig       `json:"pool"`
	Providers []ProviderConfig `json:"providers"`

	Chunk     ChunkConfig     `json:"chunk"`
	Ingestion IngestionConfig `json:"ingestion"`
}

// PoolConfig configures the LLM service pool's routing strategy and its
// failover behavior (llmservice.strategy, llmservice.failover.*).
type PoolConfig struct {
	Strategy       string `json:"strategy"`        // primary-only | failover | round-robin | model-based
	MaxRetries     int    `json:"max_retries"`     // llmservice.failover.max-retries
	TimeoutSeconds int    `json:"timeout_seconds"` // llmservice.failover.timeout-seconds
}

// ProviderConfig is one immutable record describing a pool member,
// constructed once from configuration and never re-parsed at call time.
type ProviderConfig struct {
	Name              string   `json:"name"`
	APIURL            string   `json:"api_url"`
	APIKey            string   `json:"api_key"`
	Models            []string `json:"llm_models"`
	EmbeddingModel    string   `json:"embedding_model"`
	EmbeddingDim      int      `json:"embedding_dimension"`
	EmbeddingContext  int      `json:"embedding_context_length"`
	Enabled           bool     `json:"enabled"`
}

// ChunkConfig carries the token-budget overrides from spec section 4.2:
// chapter ideal/min/max, chunk ideal/min/max, the chapter-division
// threshold, and the summary-generation threshold. These are deliberately
// independent knobs (see DESIGN.md — an open question the spec itself
// resolves by saying they are not meant to be derived from one another).
type ChunkConfig struct {
	ChapterIdealTokens int `json:"chapter_ideal_tokens"`
	ChapterMinTokens   int `json:"chapter_min_tokens"`
	ChapterMaxTokens   int `json:"chapter_max_tokens"`

	ChunkIdealTokens int `json:"chunk_ideal_tokens"`
	ChunkMinTokens   int `json:"chunk_min_tokens"`
	ChunkMaxTokens   int `json:"chunk_max_tokens"`

	ChapterSplitThresholdTokens int `json:"chapter_split_threshold_tokens"`
	SummaryThresholdTokens      int `json:"summary_threshold_tokens"`
}

// IngestionConfig controls the orchestrator's bounded worker pool.
type IngestionConfig struct {
	Workers int `json:"workers"`
}

// DefaultConfig returns the configuration defaults named throughout spec
// sections 4.2 and 6.
func DefaultConfig() Config {
	return Config{
		StoreDSN:               "postgres://localhost:5432/ragcore",
		DefaultEmbeddingModel:  "nomic-embed-text",
		DefaultCompletionModel: "llama3.1:8b",
		Pool: PoolConfig{
			Strategy:       "failover",
			MaxRetries:     3,
			TimeoutSeconds: 30,
		},
		Chunk: ChunkConfig{
			ChapterIdealTokens:          8192,
			ChapterMinTokens:            4096,
			ChapterMaxTokens:            16384,
			ChunkIdealTokens:            512,
			ChunkMinTokens:              300,
			ChunkMaxTokens:              2048,
			ChapterSplitThresholdTokens: 2000,
			SummaryThresholdTokens:      2500,
		},
		Ingestion: IngestionConfig{Workers: 4},
	}
}
