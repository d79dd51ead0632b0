package vector

import (
	"context"
	"testing"
)

func BenchmarkMemoryIndexSearch(b *testing.B) {
	idx, _ := NewMemoryIndex(768)
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	for i := range vecs {
		vecs[i] = make([]float32, 768)
		vecs[i][i%768] = 1
	}
	_ = idx.Add(ctx, vecs)
	query := make([]float32, 768)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 20)
	}
}
