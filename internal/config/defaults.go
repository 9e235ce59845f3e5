package config

// Defaults matching the all-MiniLM-L6-v2 sentence embedding model.
const (
	DefaultIndexName  = "finance_docs"
	DefaultDimensions = 384
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8003
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "./cache/vector_store"
	}
	if cfg.Index.Name == "" {
		cfg.Index.Name = DefaultIndexName
	}
	if cfg.Index.BatchLimit == 0 {
		cfg.Index.BatchLimit = 32
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Chunking.MaxWordsFullText == 0 {
		cfg.Chunking.MaxWordsFullText = 1000
	}
	if cfg.Chunking.MaxWordsSection == 0 {
		cfg.Chunking.MaxWordsSection = 500
	}
	if cfg.Query.DefaultK == 0 {
		cfg.Query.DefaultK = 5
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".json"}
	}
}
