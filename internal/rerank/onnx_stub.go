//go:build !cgo
// +build !cgo

package rerank

import (
	"context"
	"errors"

	"github.com/hyperjump/cntsearch/internal/embedding"
)

var errNoCGO = errors.New("ONNX cross-encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXCrossEncoder stub type when built without CGO (see onnx.go).
type ONNXCrossEncoder struct{}

// NewONNXCrossEncoder returns an error when built without CGO.
func NewONNXCrossEncoder(_ string, _ embedding.Tokenizer, _ int, _ bool) (*ONNXCrossEncoder, error) {
	return nil, errNoCGO
}

// Predict is not available without CGO.
func (c *ONNXCrossEncoder) Predict(context.Context, string, []string) ([]float64, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (c *ONNXCrossEncoder) Close() error { return nil }
