//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitONNXRuntime loads the onnxruntime shared library once per process. The first
// caller's libraryPath wins; an empty path uses the library's default lookup.
func InitONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	})
	return ortErr
}

// ONNXOptions configures an ONNXEmbedder.
type ONNXOptions struct {
	ModelPath  string
	Tokenizer  Tokenizer
	Dimensions int
	MaxTokens  int
	// Pooling is PoolingMean, PoolingCLS or PoolingNone.
	Pooling      string
	OutputName   string
	TokenTypeIDs bool
}

// ONNXEmbedder uses ONNX Runtime to produce embeddings. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	pooling    string
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitONNXRuntime is called if not already done.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if err := InitONNXRuntime(""); err != nil {
		return nil, err
	}
	if opts.Dimensions <= 0 || opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("dimensions and max tokens must be positive")
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = &SimpleTokenizer{}
	}
	if opts.Pooling == "" {
		opts.Pooling = PoolingMean
	}
	if opts.OutputName == "" {
		opts.OutputName = "last_hidden_state"
	}

	e := &ONNXEmbedder{
		dimensions: opts.Dimensions,
		maxTokens:  opts.MaxTokens,
		pooling:    opts.Pooling,
		tokenizer:  opts.Tokenizer,
	}
	seq := int64(opts.MaxTokens)
	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize("", opts.MaxTokens)

	var err error
	if e.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, seq), inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, seq), attentionMask); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	inputNames := []string{"input_ids", "attention_mask"}
	inputs := []ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor}
	if opts.TokenTypeIDs {
		if e.tokenTypeIDsTensor, err = ort.NewTensor(ort.NewShape(1, seq), tokenTypeIDs); err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
		}
		inputNames = append(inputNames, "token_type_ids")
		inputs = append(inputs, e.tokenTypeIDsTensor)
	}

	outputShape := ort.NewShape(1, seq, int64(opts.Dimensions))
	outputSize := opts.MaxTokens * opts.Dimensions
	if opts.Pooling == PoolingNone {
		outputShape = ort.NewShape(1, int64(opts.Dimensions))
		outputSize = opts.Dimensions
	}
	if e.outputTensor, err = ort.NewTensor(outputShape, make([]float32, outputSize)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		opts.ModelPath,
		inputNames,
		[]string{opts.OutputName},
		inputs,
		[]ort.ArbitraryTensor{e.outputTensor},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

// Embed returns the pooled embedding for text. The caller normalizes.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("ONNX embedder is closed")
	}
	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	if e.tokenTypeIDsTensor != nil {
		copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := e.outputTensor.GetData()
	switch e.pooling {
	case PoolingNone:
		emb := make([]float32, e.dimensions)
		copy(emb, out[:e.dimensions])
		return emb, nil
	case PoolingCLS:
		return CLSPool(out, e.dimensions), nil
	default:
		return MeanPool(out, attentionMask, e.maxTokens, e.dimensions), nil
	}
}

// EmbedBatch calls Embed for each text; the session runs one sequence at a time.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor = nil, nil, nil
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
