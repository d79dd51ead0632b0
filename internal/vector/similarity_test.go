package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInnerProduct(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"same", []float32{0.6, 0.8}, []float32{0.6, 0.8}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InnerProduct(tt.a, tt.b), 1e-6)
		})
	}
}

func TestIsNormalized(t *testing.T) {
	assert.True(t, IsNormalized([]float32{0.6, 0.8}, 1e-5))
	assert.False(t, IsNormalized([]float32{1, 1}, 1e-5))
}
