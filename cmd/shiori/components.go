package main

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/agent"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/index"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/llm"
	"github.com/hyperjump/shiori/internal/mcp"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Embedder embedding.Embedder
	Handle   *index.Handle
	Tool     *retrieval.Tool
	Indexer  *indexer.Indexer
	LLM      *llm.Client
	Chat     *agent.Orchestrator // nil when no chat API key is configured
	logger   *zap.Logger
}

// Artifacts returns the configured index files.
func (c *Components) Artifacts() storage.Artifacts {
	return storage.Artifacts{
		VectorPath:   c.Config.Storage.IndexPath,
		MetadataPath: c.Config.Storage.MetadataPath,
	}
}

// LoadIndex attaches the saved index. A missing index is not an error; the
// handle stays empty and searches report that the index is not loaded.
func (c *Components) LoadIndex() error {
	store, err := c.Handle.Reload(c.Artifacts(), c.Config.Embedding.Dimensions)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("no index on disk; run 'shiori index' first",
			zap.String("index_path", c.Config.Storage.IndexPath))
		return nil
	}
	if err != nil {
		return err
	}
	m := store.Manifest()
	c.logger.Info("index loaded",
		zap.Int("entries", store.Len()),
		zap.Int("dimensions", store.Dimensions()),
		zap.String("build_id", m.BuildID.String()),
		zap.Time("created_at", m.CreatedAt))
	return nil
}

// Server builds the HTTP server, with chat and /mcp mounted when available.
func (c *Components) Server(withMCP bool) (*server.Server, error) {
	opts := []server.Option{server.WithVersion(version)}
	if c.Chat != nil {
		opts = append(opts, server.WithChat(c.Chat))
	}
	if withMCP {
		h, err := c.MCPHandler()
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithMCPHandler(h))
	}
	return server.NewServer(c.Handle, c.Tool, c.Config, c.logger, opts...), nil
}

// MCPHandler returns the streamable HTTP handler for search_notes.
func (c *Components) MCPHandler() (http.Handler, error) {
	s, err := mcp.NewServer(c.Tool, version, c.logger)
	if err != nil {
		return nil, err
	}
	return s.Handler(), nil
}

// Close releases provider connections.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.Handle != nil {
		c.Handle.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ex, err := extract.NewExtractor(cfg.Corpus.Extensions...)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	chunker, err := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	idxOpts := []indexer.IndexerOption{
		indexer.WithConcurrency(cfg.Embedding.Concurrency),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
		indexer.WithIndexType(cfg.Storage.IndexType),
		indexer.WithLogger(logger),
	}
	idx := indexer.NewIndexer(embedder, ex, chunker, idxOpts...)

	handle := index.NewHandle(cfg.Storage.IndexType)
	toolOpts := []retrieval.Option{retrieval.WithLimits(cfg.Retrieval.DefaultResults, cfg.Retrieval.MaxResults)}
	if debug {
		toolOpts = append(toolOpts, retrieval.WithLogger(logger))
	}
	tool := retrieval.NewTool(handle, embedder, toolOpts...)

	c := &Components{
		Config:   cfg,
		Embedder: embedder,
		Handle:   handle,
		Tool:     tool,
		Indexer:  idx,
		logger:   logger,
	}

	if cfg.Agent.APIKey == "" {
		logger.Warn("chat disabled: no API key",
			zap.Strings("env", []string{config.EnvAPIKey, config.EnvBuilderToken, config.EnvOpenAIKey}))
		return c, nil
	}
	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  cfg.Agent.APIKey,
		Model:   cfg.Agent.Model,
		Timeout: cfg.Agent.Timeout,
	}, llm.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}
	c.LLM = client
	c.Chat = agent.New(client, tool,
		agent.WithModel(cfg.Agent.Model),
		agent.WithTemperature(cfg.Agent.TemperatureOrDefault()),
		agent.WithMaxTokens(cfg.Agent.MaxTokens),
		agent.WithMaxTurns(cfg.Agent.MaxTurns),
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithLogger(logger),
	)
	return c, nil
}
