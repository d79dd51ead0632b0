// Package config provides configuration loading and structs for the cntsearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	ONNX       ONNXConfig       `yaml:"onnx"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Compressor CompressorConfig `yaml:"compressor"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Watch      WatchConfig      `yaml:"watch"`
}

// LogConfig holds the optional rotating log file settings.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheCleanup time.Duration `yaml:"cache_cleanup"`
	// RequestTimeout bounds a single request, including answer generation.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the locations of the vector index and the metadata table.
type StorageConfig struct {
	IndexPath string `yaml:"index_path"`
	MetaPath  string `yaml:"meta_path"`
	// MetadataBackend is "jsonl" (meta.jsonl file) or "sqlite" (articles table in DatabasePath).
	MetadataBackend string `yaml:"metadata_backend"`
	DatabasePath    string `yaml:"database_path"`
}

// VectorConfig selects the vector index implementation.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// EmbeddingConfig holds query/passage embedder settings.
type EmbeddingConfig struct {
	// Provider is "onnx", "ollama" or "mock".
	Provider string `yaml:"provider"`
	// ModelName identifies the model family; it decides the query:/passage: prefix convention.
	ModelName  string `yaml:"model_name"`
	ModelPath  string `yaml:"model_path"`
	VocabPath  string `yaml:"vocab_path"`
	Lowercase  bool   `yaml:"lowercase"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	// Pooling is "mean" for models exporting last_hidden_state, "none" for pooled outputs.
	Pooling    string `yaml:"pooling"`
	OutputName string `yaml:"output_name"`
	// TokenTypeIDs feeds a token_type_ids input (BERT exports); XLM-R based models take none.
	TokenTypeIDs bool   `yaml:"token_type_ids"`
	CacheSize    int    `yaml:"cache_size"`
	OllamaURL    string `yaml:"ollama_url"`
	BatchSize    int    `yaml:"batch_size"`
}

// ONNXConfig holds onnxruntime settings shared by the embedder and the cross-encoder.
type ONNXConfig struct {
	LibraryPath string `yaml:"library_path"`
}

// RetrieverConfig holds the search pipeline parameters.
type RetrieverConfig struct {
	TopK      int `yaml:"top_k"`
	Overfetch int `yaml:"overfetch"`
	// MinScore is a pointer so that an explicit 0 disables the floor instead of taking the default.
	MinScore           *float64           `yaml:"min_score"`
	TextFieldsPriority []string           `yaml:"text_fields_priority"`
	BM25               LexicalConfig      `yaml:"bm25"`
	Rerank             CrossEncoderConfig `yaml:"rerank"`
}

// MinScoreOrDefault returns the configured evidence floor.
func (r *RetrieverConfig) MinScoreOrDefault() float64 {
	if r.MinScore != nil {
		return *r.MinScore
	}
	return DefaultMinScore
}

// LexicalConfig toggles the lexical re-ranker and selects its backend.
type LexicalConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is "bm25" (Okapi) or "bleve".
	Backend string `yaml:"backend"`
}

// CrossEncoderConfig configures the optional cross-encoder re-scorer.
type CrossEncoderConfig struct {
	Enabled bool `yaml:"enabled"`
	// Provider is "onnx" or "http".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	ModelPath string `yaml:"model_path"`
	VocabPath string `yaml:"vocab_path"`
	Lowercase bool   `yaml:"lowercase"`
	MaxTokens int    `yaml:"max_tokens"`
	// TokenTypeIDs feeds a token_type_ids input to the ONNX model.
	TokenTypeIDs bool          `yaml:"token_type_ids"`
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CompressorConfig holds the context budget handed to the answer generator.
type CompressorConfig struct {
	MaxContextChars int `yaml:"max_context_chars"`
}

// GeneratorConfig holds the Ollama chat settings for answer generation.
type GeneratorConfig struct {
	OllamaURL   string        `yaml:"ollama_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	NumPredict  int           `yaml:"num_predict"`
	NumCtx      int           `yaml:"num_ctx"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WatchConfig controls hot reload of the index files.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Log.File = expandPath(cfg.Log.File, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetaPath = expandPath(cfg.Storage.MetaPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.ONNX.LibraryPath = expandPath(cfg.ONNX.LibraryPath, configDir)
	cfg.Retriever.Rerank.ModelPath = expandPath(cfg.Retriever.Rerank.ModelPath, configDir)
	cfg.Retriever.Rerank.VocabPath = expandPath(cfg.Retriever.Rerank.VocabPath, configDir)

	return &cfg, nil
}

// Validate rejects settings that cannot produce a working retriever.
func Validate(cfg *Config) error {
	if cfg.Retriever.TopK < 0 {
		return fmt.Errorf("retriever.top_k must not be negative")
	}
	if cfg.Retriever.Overfetch < 0 {
		return fmt.Errorf("retriever.overfetch must not be negative")
	}
	switch cfg.Storage.MetadataBackend {
	case MetadataJSONL, MetadataSQLite:
	default:
		return fmt.Errorf("unknown storage.metadata_backend %q (supported: jsonl, sqlite)", cfg.Storage.MetadataBackend)
	}
	switch cfg.Retriever.BM25.Backend {
	case LexicalBM25, LexicalBleve:
	default:
		return fmt.Errorf("unknown retriever.bm25.backend %q (supported: bm25, bleve)", cfg.Retriever.BM25.Backend)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
