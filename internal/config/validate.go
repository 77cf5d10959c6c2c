package config

import "github.com/hyperjump/shiori/internal/apperr"

// Validate rejects settings that would make the index or the agent loop ill-defined.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return apperr.Configf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	overlap := c.Chunking.OverlapOrDefault()
	if overlap < 0 {
		return apperr.Configf("chunking.overlap must not be negative, got %d", overlap)
	}
	if overlap >= c.Chunking.Size {
		return apperr.Configf("chunking.overlap (%d) must be smaller than chunking.size (%d)", overlap, c.Chunking.Size)
	}
	switch c.Embedding.Provider {
	case "openai", "onnx", "hash":
	default:
		return apperr.Configf("unknown embedding.provider %q (supported: openai, onnx, hash)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return apperr.Configf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize < 0 || c.Embedding.Concurrency < 0 || c.Embedding.RequestsPerSecond < 0 {
		return apperr.Configf("embedding batch_size, concurrency and requests_per_second must not be negative")
	}
	if c.Retrieval.DefaultResults <= 0 || c.Retrieval.MaxResults <= 0 {
		return apperr.Configf("retrieval result counts must be positive")
	}
	if c.Retrieval.DefaultResults > c.Retrieval.MaxResults {
		return apperr.Configf("retrieval.default_results (%d) exceeds retrieval.max_results (%d)",
			c.Retrieval.DefaultResults, c.Retrieval.MaxResults)
	}
	if c.Agent.MaxTurns <= 0 {
		return apperr.Configf("agent.max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Storage.IndexPath == c.Storage.MetadataPath {
		return apperr.Configf("storage.index_path and storage.metadata_path must differ")
	}
	return nil
}
