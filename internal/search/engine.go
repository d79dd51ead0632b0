// Package search provides the hybrid legal-article retrieval engine.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/corpus"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/keyword"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/rerank"
	"github.com/hyperjump/cntsearch/internal/vector"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

// Engine runs direct-reference lookup, vector search and the optional re-scoring stages.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	corpus       *corpus.Corpus
	encoder      *embedding.QueryEncoder
	crossEncoder rerank.CrossEncoder
	lexical      keyword.Scorer
	topK         int
	overfetch    int
	minScore     float64
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCrossEncoder enables cross-encoder re-scoring.
func WithCrossEncoder(ce rerank.CrossEncoder) Option {
	return func(e *Engine) { e.crossEncoder = ce }
}

// WithLexicalScorer enables the lexical blend.
func WithLexicalScorer(s keyword.Scorer) Option {
	return func(e *Engine) { e.lexical = s }
}

// WithLogger sets the logger (default: no-op).
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over c. The encoder must produce vectors of the corpus dimensionality.
func NewEngine(c *corpus.Corpus, encoder *embedding.QueryEncoder, cfg *config.RetrieverConfig, opts ...Option) (*Engine, error) {
	if c == nil || encoder == nil {
		return nil, fmt.Errorf("search engine needs a corpus and a query encoder")
	}
	if encoder.Dimensions() != c.Dimensions() {
		return nil, fmt.Errorf("%w: encoder produces %d, index has %d", vector.ErrDimensionMismatch, encoder.Dimensions(), c.Dimensions())
	}
	if cfg == nil {
		cfg = &config.RetrieverConfig{}
	}
	e := &Engine{
		corpus:    c,
		encoder:   encoder,
		topK:      cfg.TopK,
		overfetch: cfg.Overfetch,
		minScore:  cfg.MinScoreOrDefault(),
		logger:    zap.NewNop(),
	}
	if e.topK <= 0 {
		e.topK = config.DefaultTopK
	}
	if e.overfetch <= 0 {
		e.overfetch = config.DefaultOverfetch
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Corpus returns the corpus the engine searches.
func (e *Engine) Corpus() *corpus.Corpus { return e.corpus }

// DefaultTopK returns the result count used when Search gets a negative topK.
func (e *Engine) DefaultTopK() int { return e.topK }

// MinScore returns the evidence floor applied to vector hits.
func (e *Engine) MinScore() float64 { return e.minScore }

// LexicalEnabled reports whether the lexical blend runs.
func (e *Engine) LexicalEnabled() bool { return e.lexical != nil }

// LexicalBackend returns the lexical scorer name, or "" when disabled.
func (e *Engine) LexicalBackend() string {
	if e.lexical == nil {
		return ""
	}
	return e.lexical.Name()
}

// CrossEncoderEnabled reports whether cross-encoder re-scoring runs.
func (e *Engine) CrossEncoderEnabled() bool { return e.crossEncoder != nil }

// Search returns up to topK articles for query. A negative topK uses the configured
// default; zero returns no results.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]*models.SearchResult, error) {
	k := topK
	if k < 0 {
		k = e.topK
	}
	if k == 0 {
		return []*models.SearchResult{}, nil
	}

	seen := make(map[string]struct{})
	candidates := e.directHits(query, seen)

	semantic, err := e.vectorHits(ctx, query, utils.MaxInt(k, e.overfetch), seen)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, semantic...)

	e.applyCrossEncoder(ctx, query, candidates)
	e.applyLexical(ctx, query, candidates)

	return Assemble(candidates, k), nil
}

// Article returns the record for article number n as a direct hit.
func (e *Engine) Article(n int) (*models.SearchResult, bool) {
	row, ok := e.corpus.RowForArticle(n)
	if !ok {
		return nil, false
	}
	rec, _ := e.corpus.Record(row)
	return models.NewSearchResult(rec, e.corpus.Text(row), 1.0, models.SourceDirect), true
}

func (e *Engine) directHits(query string, seen map[string]struct{}) []*models.SearchResult {
	var out []*models.SearchResult
	for _, n := range ExtractArticleNumbers(query) {
		row, ok := e.corpus.RowForArticle(n)
		if !ok {
			continue
		}
		rec, _ := e.corpus.Record(row)
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.NewSearchResult(rec, e.corpus.Text(row), 1.0, models.SourceDirect))
	}
	return out
}

func (e *Engine) vectorHits(ctx context.Context, query string, overfetch int, seen map[string]struct{}) ([]*models.SearchResult, error) {
	qvec, err := e.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hits, err := e.corpus.Index().Search(ctx, qvec, overfetch)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var out []*models.SearchResult
	for _, h := range hits {
		row := int(h.Row)
		rec, ok := e.corpus.Record(row)
		if !ok {
			e.logger.Debug("skipping out-of-range vector row", zap.Int64("row", h.Row))
			continue
		}
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		if h.Score < e.minScore {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.NewSearchResult(rec, e.corpus.Text(row), h.Score, models.SourceSemantic))
	}
	return out, nil
}

func (e *Engine) applyCrossEncoder(ctx context.Context, query string, candidates []*models.SearchResult) {
	if e.crossEncoder == nil || len(candidates) == 0 {
		return
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	scores, err := e.crossEncoder.Predict(ctx, query, texts)
	if err == nil {
		err = rerank.CheckScores(scores, len(texts))
	}
	if err != nil {
		e.logger.Warn("cross-encoder failed, keeping previous scores", zap.Error(err))
		return
	}
	ReplaceScores(candidates, scores)
}

func (e *Engine) applyLexical(ctx context.Context, query string, candidates []*models.SearchResult) {
	if e.lexical == nil || len(candidates) < 2 {
		return
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	scores, err := e.lexical.Scores(ctx, keyword.Tokenize(query), docs)
	if err == nil && len(scores) != len(docs) {
		err = fmt.Errorf("lexical scorer returned %d scores for %d docs", len(scores), len(docs))
	}
	if err != nil {
		e.logger.Warn("lexical scoring failed, skipping blend", zap.String("backend", e.lexical.Name()), zap.Error(err))
		return
	}
	BlendLexical(candidates, scores)
}
