package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanPool(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100, // padding
	}
	assert.Equal(t, []float32{2, 3}, MeanPool(hidden, []int64{1, 1, 0}, 3, 2))
	assert.Equal(t, []float32{0, 0}, MeanPool(hidden, []int64{0, 0, 0}, 3, 2), "all masked")
}

func TestCLSPool(t *testing.T) {
	assert.Equal(t, []float32{5, 6}, CLSPool([]float32{5, 6, 7, 8}, 2))
}
