package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat is exact brute-force inner product. Adequate for tens of thousands of chunks.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeMemory is an alias of IndexTypeFlat kept for older configs.
	IndexTypeMemory IndexType = "memory"
)

// New creates an empty vector index of the specified type.
// Supported types: "flat" (default), "memory".
func New(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, IndexTypeMemory, "":
		return NewFlatIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat)", indexType)
	}
}
