// Package index pairs a vector index with the chunk metadata it was built from.
package index

import (
	"context"
	"fmt"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
)

// Store is an immutable, positionally aligned pairing of vectors and chunks:
// the vector at ordinal i was computed from chunks[i]. Safe for concurrent Search.
type Store struct {
	vectors  vector.Index
	chunks   []models.Chunk
	manifest storage.Manifest
}

// Build creates a store from entries. Entry order defines ordinals.
func Build(indexType string, entries []models.IndexEntry, manifest storage.Manifest) (*Store, error) {
	vectors := make([][]float32, len(entries))
	chunks := make([]models.Chunk, len(entries))
	for i, e := range entries {
		vectors[i] = e.Embedding
		chunks[i] = e.Chunk
	}
	return assemble(indexType, manifest, vectors, chunks)
}

// Load reads a persisted store. dimension is the expected embedding dimension
// (0 accepts the stored one).
func Load(indexType string, a storage.Artifacts, dimension int) (*Store, error) {
	manifest, vectors, chunks, err := storage.Load(a, dimension)
	if err != nil {
		return nil, err
	}
	return assemble(indexType, manifest, vectors, chunks)
}

func assemble(indexType string, manifest storage.Manifest, vectors [][]float32, chunks []models.Chunk) (*Store, error) {
	idx, err := vector.New(indexType, manifest.Dimension)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(vectors); err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	manifest.Count = len(chunks)
	return &Store{vectors: idx, chunks: chunks, manifest: manifest}, nil
}

// Save persists the store to a.
func (s *Store) Save(a storage.Artifacts) error {
	return storage.Save(a, s.manifest, s.vectors.Vectors(), s.chunks)
}

// Search returns up to k chunks most similar to query, best first.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	hits, err := s.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.NewSearchResult(s.chunks[h.Ordinal], h.Score)
	}
	return results, nil
}

// Chunk returns the chunk at ordinal i.
func (s *Store) Chunk(i int) models.Chunk {
	return s.chunks[i]
}

func (s *Store) Len() int {
	return len(s.chunks)
}

func (s *Store) Dimensions() int {
	return s.vectors.Dimensions()
}

// Manifest describes the build this store came from.
func (s *Store) Manifest() storage.Manifest {
	return s.manifest
}
