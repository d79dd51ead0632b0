package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryIndex(t *testing.T, dim int, vecs [][]float32) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex(dim)
	require.NoError(t, err)
	if len(vecs) > 0 {
		require.NoError(t, idx.Add(context.Background(), vecs))
	}
	return idx
}

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx := newMemoryIndex(t, 3, [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	})
	defer idx.Close()
	assert.Equal(t, 3, idx.Size())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(0), results[0].Row)
	assert.Equal(t, int64(1), results[1].Row)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score, "scores not descending")
}

func TestMemoryIndex_SearchKLargerThanSize(t *testing.T) {
	idx := newMemoryIndex(t, 2, [][]float32{{1, 0}, {0, 1}})

	results, err := idx.Search(context.Background(), []float32{1, 0}, 32)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryIndex_TiesKeepRowOrder(t *testing.T) {
	idx := newMemoryIndex(t, 2, [][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}})

	results, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, results[i].Row, "results[%d]", i)
	}
}

func TestMemoryIndex_EmptyAndZeroK(t *testing.T) {
	idx := newMemoryIndex(t, 2, nil)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results, "empty index")

	require.NoError(t, idx.Add(ctx, [][]float32{{1, 0}}))
	results, err = idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results, "k=0")
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := newMemoryIndex(t, 3, nil)
	ctx := context.Background()

	assert.ErrorIs(t, idx.Add(ctx, [][]float32{{1, 0}}), ErrDimensionMismatch)
	_, err := idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Zero(t, idx.Size(), "failed Add must not insert")
}

func TestMemoryIndex_AddCopiesInput(t *testing.T) {
	v := []float32{1, 0}
	idx := newMemoryIndex(t, 2, [][]float32{v})
	v[0] = -1

	results, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Score, "stored vector was aliased")
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.bin")

	idx := newMemoryIndex(t, 3, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	require.NoError(t, idx.Save(path))

	idx2 := newMemoryIndex(t, 3, nil)
	require.NoError(t, idx2.Load(path))
	assert.Equal(t, 3, idx2.Size())

	results, err := idx2.Search(context.Background(), []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Row)
}

func TestMemoryIndex_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "four.bin")
	four := newMemoryIndex(t, 4, [][]float32{{1, 0, 0, 0}})
	require.NoError(t, four.Save(saved))
	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not an index"), 0644))

	tests := []struct {
		name    string
		path    string
		wantDim bool
	}{
		{"empty path", "", false},
		{"missing file", filepath.Join(dir, "missing.bin"), false},
		{"bad magic", garbage, false},
		{"wrong dimension", saved, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newMemoryIndex(t, 3, nil).Load(tt.path)
			require.Error(t, err)
			if tt.wantDim {
				assert.ErrorIs(t, err, ErrDimensionMismatch)
			}
		})
	}
}

// writeNPY writes a C-order little-endian float32 array in NumPy format 1.0.
func writeNPY(t *testing.T, path string, rows, cols int, data []float32) {
	t.Helper()
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	pad := 64 - (10+len(header)+1)%64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	buf := []byte("\x93NUMPY\x01\x00")
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	require.NoError(t, os.WriteFile(path, buf, 0644))
}

func TestMemoryIndex_LoadNPY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.npy")
	writeNPY(t, path, 2, 3, []float32{0, 1, 0, 1, 0, 0})

	idx := newMemoryIndex(t, 3, nil)
	require.NoError(t, idx.Load(path))
	require.Equal(t, 2, idx.Size())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Row)

	assert.ErrorIs(t, newMemoryIndex(t, 4, nil).Load(path), ErrDimensionMismatch)
}

func TestMemoryIndex_Type(t *testing.T) {
	idx := newMemoryIndex(t, 1, nil)
	assert.Equal(t, "memory", idx.Type())
	assert.Equal(t, 1, idx.Dimensions())
}
