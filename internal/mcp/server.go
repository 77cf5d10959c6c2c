// Package mcp exposes search_notes to MCP clients over stdio or streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// ErrMissingSearcher is returned when NewServer is given no searcher.
var ErrMissingSearcher = errors.New("mcp: searcher is required")

// Searcher is the retrieval operation served to MCP clients.
type Searcher interface {
	SearchNotes(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

// Server is the MCP server for Shiori.
type Server struct {
	searcher Searcher
	server   *mcp.Server
	logger   *zap.Logger
}

// NewServer creates an MCP server with search_notes registered.
func NewServer(searcher Searcher, version string, logger *zap.Logger) (*Server, error) {
	if searcher == nil {
		return nil, ErrMissingSearcher
	}
	impl := &mcp.Implementation{
		Name:    "shiori",
		Version: version,
	}
	s := &Server{
		searcher: searcher,
		server:   mcp.NewServer(impl, nil),
		logger:   utils.OrNop(logger),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns a streamable HTTP handler for mounting on an existing router.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Starting MCP server", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
