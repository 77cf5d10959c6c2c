// Package embedding converts text into fixed-dimension vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations return an
// *apperr.ServiceError when the provider is unreachable, rate-limited, or
// returns malformed output.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
