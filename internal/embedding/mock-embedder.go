package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/hyperjump/cntsearch/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and offline runs.
// Each lowercased word is hashed into one dimension, so texts sharing words are similar.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a normalized word-count vector. The "query: " and "passage: " prefixes
// are ignored so both sides of the prefix contract land in the same space.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimPrefix(text, QueryPrefix)
	text = strings.TrimPrefix(text, PassagePrefix)

	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:¿?¡!()\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		emb[int(h.Sum32()%uint32(e.dimensions))]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
