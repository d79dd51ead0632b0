package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Fine for a single legal code.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses FAISS. Requires the FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewVectorIndex creates an empty vector index of the specified type.
// Supported types: "memory" (default), "faiss".
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss)", indexType)
	}
}

// Open creates an index of the given type and loads it from path.
func Open(indexType, path string, dimensions int) (VectorIndex, error) {
	idx, err := NewVectorIndex(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("load %s index from %s: %w", idx.Type(), path, err)
	}
	return idx, nil
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
