package embedding

// Pooling strategies for models that export token-level hidden states.
const (
	PoolingMean = "mean"
	PoolingCLS  = "cls"
	// PoolingNone means the model output is already a sentence embedding of shape (1, dims).
	PoolingNone = "none"
)

// MeanPool averages the hidden states of tokens whose attention mask is 1.
// hidden is a row-major (seqLen x dims) matrix.
func MeanPool(hidden []float32, mask []int64, seqLen, dims int) []float32 {
	out := make([]float32, dims)
	var count float32
	for tok := 0; tok < seqLen && tok < len(mask); tok++ {
		if mask[tok] == 0 {
			continue
		}
		row := hidden[tok*dims : (tok+1)*dims]
		for d, v := range row {
			out[d] += v
		}
		count++
	}
	if count == 0 {
		return out
	}
	for d := range out {
		out[d] /= count
	}
	return out
}

// CLSPool returns the hidden state of the first token.
func CLSPool(hidden []float32, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, hidden[:dims])
	return out
}
