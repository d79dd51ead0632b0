package vector

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// ReadNPY reads a 2-D float32 array (rows x dimensions) such as the embeddings.npy
// written next to faiss.index by the indexing pipeline.
func ReadNPY(path string, dimensions int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open npy file: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("npy array must be 2-D, got shape %v", shape)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("npy array in Fortran order is not supported")
	}
	rows, dim := shape[0], shape[1]
	if dim != dimensions {
		return nil, fmt.Errorf("%w: npy has %d, index expects %d", ErrDimensionMismatch, dim, dimensions)
	}

	var flat []float32
	if err := r.Read(&flat); err != nil {
		return nil, fmt.Errorf("read npy data: %w", err)
	}
	if len(flat) != rows*dim {
		return nil, fmt.Errorf("npy data has %d values, expected %d", len(flat), rows*dim)
	}
	vectors := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		vec := make([]float32, dim)
		copy(vec, flat[i*dim:(i+1)*dim])
		vectors[i] = vec
	}
	return vectors, nil
}
