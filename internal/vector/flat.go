package vector

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/pkg/utils"
)

// FlatIndex is an exact brute-force inner-product index. It normalizes every
// vector on Build and every query on Search, so scores are cosine similarities.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	built      bool
}

// NewFlatIndex creates an empty flat index of the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, apperr.Configf("vector dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Build copies and normalizes vectors. A vector of the wrong dimension is an
// index-corruption condition; a zero or non-finite vector cannot be normalized
// and is rejected. Build may only be called once.
func (f *FlatIndex) Build(vectors [][]float32) error {
	if f.built {
		return fmt.Errorf("flat index already built")
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != f.dimensions {
			return apperr.Corruptf("", "vector %d has dimension %d, expected %d", i, len(v), f.dimensions)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return fmt.Errorf("vector %d has non-finite components", i)
			}
		}
		vec := utils.Normalized(v)
		if !utils.IsUnit(vec, 1e-3) {
			return fmt.Errorf("vector %d has zero norm", i)
		}
		stored[i] = vec
	}
	f.vectors = stored
	f.built = true
	return nil
}

// Search returns the min(k, Len) most similar vectors, by descending score with
// ties broken by the earlier ordinal.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, apperr.Configf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if len(f.vectors) == 0 {
		return nil, apperr.ErrEmptyIndex
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	k = min(k, len(f.vectors))
	q := utils.Normalized(query)

	hits := make([]Hit, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = Hit{Ordinal: i, Score: InnerProduct(q, vec)}
	}
	slices.SortStableFunc(hits, compareHits)
	return hits[:k:k], nil
}

func compareHits(a, b Hit) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	default:
		return a.Ordinal - b.Ordinal
	}
}

// Vectors returns the normalized vectors in ordinal order.
func (f *FlatIndex) Vectors() [][]float32 {
	return f.vectors
}

// Len returns the number of vectors in the index.
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}
