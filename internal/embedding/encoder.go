package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/cntsearch/internal/vector"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

// QueryEncoder turns a user query into a normalized vector compatible with the corpus index.
type QueryEncoder struct {
	embedder   Embedder
	prefixed   bool
	dimensions int
	cache      *EmbeddingCache
}

// NewQueryEncoder wraps embedder. dimensions is the corpus dimensionality every encoded
// query must match; cacheSize <= 0 disables the cache.
func NewQueryEncoder(embedder Embedder, modelName string, dimensions, cacheSize int) *QueryEncoder {
	return &QueryEncoder{
		embedder:   embedder,
		prefixed:   UsesInstructionPrefixes(modelName),
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
	}
}

// Prefixed reports whether queries get the "query: " prefix.
func (e *QueryEncoder) Prefixed() bool {
	return e.prefixed
}

// Dimensions returns the dimensionality every encoded query must have.
func (e *QueryEncoder) Dimensions() int {
	return e.dimensions
}

// Text returns the exact string sent to the embedder for query.
func (e *QueryEncoder) Text(query string) string {
	if e.prefixed {
		return QueryPrefix + query
	}
	return query
}

// Encode returns the L2-normalized embedding of query.
func (e *QueryEncoder) Encode(ctx context.Context, query string) ([]float32, error) {
	text := e.Text(query)
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("%w: embedder returned %d, corpus has %d", vector.ErrDimensionMismatch, len(vec), e.dimensions)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	utils.NormalizeL2(out)
	e.cache.Set(text, out)
	return out, nil
}

// PassageEncoder embeds article texts for indexing with the passage side of the prefix contract.
type PassageEncoder struct {
	embedder  Embedder
	prefixed  bool
	batchSize int
}

// NewPassageEncoder wraps embedder. batchSize <= 0 embeds everything in one call.
func NewPassageEncoder(embedder Embedder, modelName string, batchSize int) *PassageEncoder {
	return &PassageEncoder{
		embedder:  embedder,
		prefixed:  UsesInstructionPrefixes(modelName),
		batchSize: batchSize,
	}
}

// Text returns the string sent to the embedder for passage. An existing prefix is not repeated.
func (e *PassageEncoder) Text(passage string) string {
	if e.prefixed && !strings.HasPrefix(passage, PassagePrefix) {
		return PassagePrefix + passage
	}
	return passage
}

// EncodeBatch embeds passages in order and returns L2-normalized vectors.
func (e *PassageEncoder) EncodeBatch(ctx context.Context, passages []string) ([][]float32, error) {
	size := e.batchSize
	if size <= 0 {
		size = len(passages)
	}
	out := make([][]float32, 0, len(passages))
	for start := 0; start < len(passages); start += size {
		end := start + size
		if end > len(passages) {
			end = len(passages)
		}
		batch := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			batch = append(batch, e.Text(p))
		}
		vecs, err := e.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed passages %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(vecs), len(batch))
		}
		for _, v := range vecs {
			utils.NormalizeL2(v)
			out = append(out, v)
		}
	}
	return out, nil
}
