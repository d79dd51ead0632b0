// Package embedding provides text embedding, the query/passage prefix contract and caching.
package embedding

import (
	"context"
	"strings"
)

const (
	// QueryPrefix is prepended to queries for models trained with instruction prefixes.
	QueryPrefix = "query: "
	// PassagePrefix is prepended to indexed passages for the same model family.
	PassagePrefix = "passage: "
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// UsesInstructionPrefixes reports whether model expects "query: "/"passage: " prefixes.
// The rule is shared by the query encoder and the index builder.
func UsesInstructionPrefixes(model string) bool {
	return strings.Contains(strings.ToLower(model), "e5")
}
