package config

import "time"

// Defaults shared with packages that construct components without a config file.
const (
	DefaultChunkSize      = 500
	DefaultChunkOverlap   = 50
	DefaultResults        = 5
	DefaultMaxResults     = 20
	DefaultMaxTurns       = 5
	DefaultTemperature    = 0.7
	DefaultBaseURL        = "https://space.ai-builders.com/backend/v1"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultAgentModel     = "supermind-agent-v1"
	DefaultBatchSize      = 100
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/my_notes.index"
	}
	if cfg.Storage.MetadataPath == "" {
		cfg.Storage.MetadataPath = "./data/my_notes_metadata.db"
	}
	if cfg.Storage.IndexType == "" {
		cfg.Storage.IndexType = "flat"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = DefaultBaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	// The openai provider learns its dimension from the first response.
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider != "openai" {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = DefaultBatchSize
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = DefaultChunkSize
	}
	if cfg.Chunking.Overlap == nil {
		o := DefaultChunkOverlap
		cfg.Chunking.Overlap = &o
	}
	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = DefaultResults
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = DefaultMaxResults
	}
	if cfg.Agent.BaseURL == "" {
		cfg.Agent.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultAgentModel
	}
	if cfg.Agent.Temperature == nil {
		t := DefaultTemperature
		cfg.Agent.Temperature = &t
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = DefaultMaxTurns
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = 120 * time.Second
	}
	if cfg.Corpus.Root == "" {
		cfg.Corpus.Root = "./notes"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".md"}
	}
}
