// Package vector provides similarity search over L2-normalized embeddings.
package vector

import "context"

// Index is a similarity structure built once from an ordered set of vectors.
// Hit ordinals are positions in the slice passed to Build. After Build returns
// the index is read-only and safe for concurrent Search.
type Index interface {
	Build(vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// Vectors returns the stored normalized vectors in ordinal order. Callers must not modify them.
	Vectors() [][]float32
	Len() int
	Dimensions() int
	Type() string
}

// Hit is a single search hit.
type Hit struct {
	Ordinal int
	Score   float64 // inner product of normalized vectors, i.e. cosine similarity
}
