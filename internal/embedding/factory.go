package embedding

import (
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/config"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderHash   = "hash"
)

// New creates the embedder selected by cfg.Provider, wrapped with rate limiting,
// a single bounded retry and an LRU cache of cfg.CacheSize query embeddings.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case ProviderOpenAI, "":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case ProviderONNX:
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		base = e
	case ProviderHash:
		base = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, apperr.Configf("unknown embedding provider %q", cfg.Provider)
	}
	opts := []RetryOption{WithRateLimit(cfg.RequestsPerSecond)}
	if logger != nil {
		opts = append(opts, WithRetryLogger(logger))
	}
	return NewCachedEmbedder(NewRetryingEmbedder(base, opts...), cfg.CacheSize), nil
}
