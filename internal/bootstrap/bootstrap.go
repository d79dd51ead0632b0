// Package bootstrap wires configuration into a ready search engine, answer generator
// and their supporting services.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/corpus"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/generator"
	"github.com/hyperjump/cntsearch/internal/keyword"
	"github.com/hyperjump/cntsearch/internal/rerank"
	"github.com/hyperjump/cntsearch/internal/search"
	"github.com/hyperjump/cntsearch/internal/storage"
	"github.com/hyperjump/cntsearch/internal/vector"
)

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
	ProviderHTTP   = "http"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	Embedder     embedding.Embedder
	Encoder      *embedding.QueryEncoder
	CrossEncoder rerank.CrossEncoder
	Lexical      keyword.Scorer
	Generator    *generator.Generator
	Engines      *Holder
	logger       *zap.Logger
	closers      []io.Closer
}

// Build creates every component from cfg and loads the corpus. Optional stages that
// fail to initialize are disabled with a warning; a missing or misaligned index is fatal.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg, logger: logger}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder
	c.closers = append(c.closers, embedder)
	c.Encoder = embedding.NewQueryEncoder(embedder, cfg.Embedding.ModelName, cfg.Embedding.Dimensions, cfg.Embedding.CacheSize)
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.ModelName),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("instruction_prefixes", c.Encoder.Prefixed()))

	if cfg.Retriever.Rerank.Enabled {
		ce, err := NewCrossEncoder(cfg)
		if err != nil {
			logger.Warn("cross-encoder unavailable; re-scoring disabled", zap.Error(err))
		} else {
			c.CrossEncoder = ce
			if closer, ok := ce.(io.Closer); ok {
				c.closers = append(c.closers, closer)
			}
			logger.Info("cross-encoder initialized", zap.String("provider", cfg.Retriever.Rerank.Provider))
		}
	}

	if cfg.Retriever.BM25.Enabled {
		scorer, err := keyword.NewScorer(cfg.Retriever.BM25.Backend)
		if err != nil {
			logger.Warn("lexical scorer unavailable; lexical re-ranking disabled", zap.Error(err))
		} else {
			c.Lexical = scorer
		}
	}

	c.Generator = generator.New(
		generator.NewOllamaLLM(cfg.Generator.OllamaURL, cfg.Generator.Model, cfg.Generator.Timeout),
		&cfg.Generator,
		cfg.Compressor.MaxContextChars,
		generator.WithLogger(logger),
	)

	engine, err := c.NewEngine(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engines = NewHolder(engine, c.NewEngine, logger)
	return c, nil
}

// NewEngine loads the corpus from disk and builds an engine over it with the shared
// encoder and optional stages.
func (c *Components) NewEngine(ctx context.Context) (*search.Engine, error) {
	corp, err := OpenCorpus(ctx, c.Config)
	if err != nil {
		return nil, err
	}
	opts := []search.Option{search.WithLogger(c.logger)}
	if c.CrossEncoder != nil {
		opts = append(opts, search.WithCrossEncoder(c.CrossEncoder))
	}
	if c.Lexical != nil {
		opts = append(opts, search.WithLexicalScorer(c.Lexical))
	}
	engine, err := search.NewEngine(corp, c.Encoder, &c.Config.Retriever, opts...)
	if err != nil {
		_ = corp.Close()
		return nil, err
	}
	c.logger.Info("corpus loaded",
		zap.Int("rows", corp.Size()),
		zap.Int("articles", len(corp.Articles())),
		zap.String("index_type", corp.Index().Type()),
		zap.Bool("lexical", engine.LexicalEnabled()),
		zap.Bool("cross_encoder", engine.CrossEncoderEnabled()))
	return engine, nil
}

// Close releases the engine, models and other resources.
func (c *Components) Close() {
	if c.Engines != nil {
		_ = c.Engines.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// NewEmbedder creates the query/passage embedder selected by embedding.provider.
func NewEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case ProviderONNX, "":
		if ec.VocabPath == "" {
			return nil, fmt.Errorf("embedding.vocab_path is required for the onnx provider")
		}
		if err := embedding.InitONNXRuntime(cfg.ONNX.LibraryPath); err != nil {
			return nil, err
		}
		tok, err := embedding.LoadWordPieceTokenizer(ec.VocabPath, ec.Lowercase)
		if err != nil {
			return nil, err
		}
		emb, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
			ModelPath:    ec.ModelPath,
			Tokenizer:    tok,
			Dimensions:   ec.Dimensions,
			MaxTokens:    ec.MaxTokens,
			Pooling:      ec.Pooling,
			OutputName:   ec.OutputName,
			TokenTypeIDs: ec.TokenTypeIDs,
		})
		if err != nil {
			return nil, err
		}
		return emb, nil
	case ProviderOllama:
		return embedding.NewOllamaEmbedder(ec.OllamaURL, ec.ModelName, ec.Dimensions, 0), nil
	case ProviderMock:
		return embedding.NewMockEmbedder(ec.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, mock)", ec.Provider)
	}
}

// NewCrossEncoder creates the re-scorer selected by retriever.rerank.provider.
func NewCrossEncoder(cfg *config.Config) (rerank.CrossEncoder, error) {
	rc := cfg.Retriever.Rerank
	switch rc.Provider {
	case ProviderONNX, "":
		if rc.ModelPath == "" || rc.VocabPath == "" {
			return nil, fmt.Errorf("retriever.rerank.model_path and vocab_path are required for the onnx provider")
		}
		if err := embedding.InitONNXRuntime(cfg.ONNX.LibraryPath); err != nil {
			return nil, err
		}
		tok, err := embedding.LoadWordPieceTokenizer(rc.VocabPath, rc.Lowercase)
		if err != nil {
			return nil, err
		}
		ce, err := rerank.NewONNXCrossEncoder(rc.ModelPath, tok, rc.MaxTokens, rc.TokenTypeIDs)
		if err != nil {
			return nil, err
		}
		return ce, nil
	case ProviderHTTP:
		ce, err := rerank.NewHTTPCrossEncoder(rc.URL, rc.Timeout)
		if err != nil {
			return nil, err
		}
		return ce, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s (supported: onnx, http)", rc.Provider)
	}
}

// OpenMetadata opens the metadata table selected by storage.metadata_backend.
func OpenMetadata(cfg *config.Config) (storage.MetadataSource, error) {
	switch cfg.Storage.MetadataBackend {
	case config.MetadataJSONL, "":
		return storage.NewJSONLStore(cfg.Storage.MetaPath), nil
	case config.MetadataSQLite:
		db, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown metadata backend: %s", cfg.Storage.MetadataBackend)
	}
}

// OpenCorpus loads the vector index and metadata table and checks their alignment.
func OpenCorpus(ctx context.Context, cfg *config.Config) (*corpus.Corpus, error) {
	idx, err := vector.Open(cfg.Vector.IndexType, cfg.Storage.IndexPath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	source, err := OpenMetadata(cfg)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	defer source.Close()

	corp, err := corpus.Load(ctx, source, idx, corpus.NewTextResolver(cfg.Retriever.TextFieldsPriority))
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return corp, nil
}
