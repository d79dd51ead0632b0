// Package keyword provides lexical scoring used to re-rank retrieved articles.
package keyword

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Backend names accepted by NewScorer.
const (
	BackendBM25  = "bm25"
	BackendBleve = "bleve"
)

// Scorer scores a small set of candidate texts against query tokens. The result has
// one score per doc, in the same order.
type Scorer interface {
	Scores(ctx context.Context, queryTokens []string, docs []string) ([]float64, error)
	Name() string
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lowercases text and returns its word runs (letters, digits, underscore).
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// NewScorer returns the scorer for backend. An empty backend selects BM25.
func NewScorer(backend string) (Scorer, error) {
	switch backend {
	case BackendBM25, "":
		return NewBM25(), nil
	case BackendBleve:
		return NewBleveScorer()
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (supported: bm25, bleve)", backend)
	}
}
