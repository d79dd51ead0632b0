package config

import "time"

// Retrieval defaults.
const (
	DefaultTopK      = 6
	DefaultOverfetch = 32
	DefaultMinScore  = 0.35
)

// Answer generation defaults.
const (
	DefaultGeneratorModel = "qwen2.5:7b"
	DefaultTemperature    = 0.1
	DefaultNumPredict     = 250
	DefaultNumCtx         = 4096
)

// Metadata backends.
const (
	MetadataJSONL  = "jsonl"
	MetadataSQLite = "sqlite"
)

// Lexical backends.
const (
	LexicalBM25  = "bm25"
	LexicalBleve = "bleve"
)

// DefaultTextFieldsPriority is the order in which text-field variants are resolved.
var DefaultTextFieldsPriority = []string{"texto", "texto_completo", "content", "body", "snippet"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CacheTTL == 0 {
		cfg.Server.CacheTTL = 10 * time.Minute
	}
	if cfg.Server.CacheCleanup == 0 {
		cfg.Server.CacheCleanup = 15 * time.Minute
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 3 * time.Minute
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/cntsearch/data/index/vectors.bin"
	}
	if cfg.Storage.MetaPath == "" {
		cfg.Storage.MetaPath = "/usr/local/var/cntsearch/data/index/meta.jsonl"
	}
	if cfg.Storage.MetadataBackend == "" {
		cfg.Storage.MetadataBackend = MetadataJSONL
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/cntsearch/data/db/articles.db"
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "intfloat/multilingual-e5-base"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/cntsearch/data/models/multilingual-e5-base.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.Pooling == "" {
		cfg.Embedding.Pooling = "mean"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "last_hidden_state"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = DefaultTopK
	}
	if cfg.Retriever.Overfetch == 0 {
		cfg.Retriever.Overfetch = DefaultOverfetch
	}
	if len(cfg.Retriever.TextFieldsPriority) == 0 {
		cfg.Retriever.TextFieldsPriority = append([]string(nil), DefaultTextFieldsPriority...)
	}
	if cfg.Retriever.BM25.Backend == "" {
		cfg.Retriever.BM25.Backend = LexicalBM25
	}
	if cfg.Retriever.Rerank.Provider == "" {
		cfg.Retriever.Rerank.Provider = "onnx"
	}
	if cfg.Retriever.Rerank.MaxTokens == 0 {
		cfg.Retriever.Rerank.MaxTokens = 512
	}
	if cfg.Retriever.Rerank.Timeout == 0 {
		cfg.Retriever.Rerank.Timeout = 30 * time.Second
	}
	if cfg.Compressor.MaxContextChars == 0 {
		cfg.Compressor.MaxContextChars = 8000
	}
	if cfg.Generator.OllamaURL == "" {
		cfg.Generator.OllamaURL = "http://localhost:11434"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = DefaultGeneratorModel
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = DefaultTemperature
	}
	if cfg.Generator.NumPredict == 0 {
		cfg.Generator.NumPredict = DefaultNumPredict
	}
	if cfg.Generator.NumCtx == 0 {
		cfg.Generator.NumCtx = DefaultNumCtx
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 120 * time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
