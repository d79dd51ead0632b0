// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimensionality.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex stores L2-normalized vectors by row position and answers inner-product queries.
// Row i corresponds to row i of the metadata table.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit. Row may be negative when the backend
// reports an unfilled slot; callers must bounds-check it.
type VectorResult struct {
	Row   int64
	Score float64 // Inner product (cosine similarity for normalized vectors)
}
