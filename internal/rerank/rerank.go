// Package rerank provides cross-encoder re-scoring of retrieved articles.
package rerank

import (
	"context"
	"errors"
	"fmt"
)

// ErrScoreCount is returned when a cross-encoder yields a different number of scores than texts.
var ErrScoreCount = errors.New("cross-encoder returned wrong number of scores")

// CrossEncoder scores (query, text) pairs; higher means more relevant.
type CrossEncoder interface {
	Predict(ctx context.Context, query string, texts []string) ([]float64, error)
}

// FuncCrossEncoder adapts a function to CrossEncoder.
type FuncCrossEncoder func(ctx context.Context, query string, texts []string) ([]float64, error)

// Predict calls f.
func (f FuncCrossEncoder) Predict(ctx context.Context, query string, texts []string) ([]float64, error) {
	return f(ctx, query, texts)
}

// CheckScores verifies that got has one score per text.
func CheckScores(got []float64, texts int) error {
	if len(got) != texts {
		return fmt.Errorf("%w: got %d for %d texts", ErrScoreCount, len(got), texts)
	}
	return nil
}
