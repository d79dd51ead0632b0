//go:build cgo
// +build cgo

package rerank

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/cntsearch/internal/embedding"
)

// ONNXCrossEncoder runs a sequence-classification cross-encoder exported to ONNX.
// The model takes one (query, text) pair per run and exposes a "logits" output of
// shape (1, 1); the logit is the relevance score.
type ONNXCrossEncoder struct {
	session   *ort.AdvancedSession
	tokenizer embedding.Tokenizer
	maxTokens int

	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXCrossEncoder loads modelPath. The onnxruntime environment must be initialized
// through embedding.InitONNXRuntime or is initialized with default settings.
func NewONNXCrossEncoder(modelPath string, tokenizer embedding.Tokenizer, maxTokens int, tokenTypeIDs bool) (*ONNXCrossEncoder, error) {
	if err := embedding.InitONNXRuntime(""); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("cross-encoder needs a tokenizer")
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	c := &ONNXCrossEncoder{tokenizer: tokenizer, maxTokens: maxTokens}
	seq := int64(maxTokens)
	ids, mask, types := tokenizer.TokenizePair("", "", maxTokens)

	var err error
	if c.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, seq), ids); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if c.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, seq), mask); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	inputNames := []string{"input_ids", "attention_mask"}
	inputs := []ort.ArbitraryTensor{c.inputIDsTensor, c.attentionMaskTensor}
	if tokenTypeIDs {
		if c.tokenTypeIDsTensor, err = ort.NewTensor(ort.NewShape(1, seq), types); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
		}
		inputNames = append(inputNames, "token_type_ids")
		inputs = append(inputs, c.tokenTypeIDsTensor)
	}
	if c.outputTensor, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}

	c.session, err = ort.NewAdvancedSession(modelPath, inputNames, []string{"logits"},
		inputs, []ort.ArbitraryTensor{c.outputTensor}, nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return c, nil
}

// Predict scores each (query, text) pair in order.
func (c *ONNXCrossEncoder) Predict(ctx context.Context, query string, texts []string) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("cross-encoder is closed")
	}
	scores := make([]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, mask, types := c.tokenizer.TokenizePair(query, text, c.maxTokens)
		copy(c.inputIDsTensor.GetData(), ids)
		copy(c.attentionMaskTensor.GetData(), mask)
		if c.tokenTypeIDsTensor != nil {
			copy(c.tokenTypeIDsTensor.GetData(), types)
		}
		if err := c.session.Run(); err != nil {
			return nil, fmt.Errorf("cross-encoder inference failed: %w", err)
		}
		scores[i] = float64(c.outputTensor.GetData()[0])
	}
	return scores, nil
}

// Close destroys the session and tensors.
func (c *ONNXCrossEncoder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{c.inputIDsTensor, c.attentionMaskTensor, c.tokenTypeIDsTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	c.inputIDsTensor, c.attentionMaskTensor, c.tokenTypeIDsTensor = nil, nil, nil
	if c.outputTensor != nil {
		_ = c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return err
}
