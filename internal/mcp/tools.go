package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/retrieval"
)

// SearchInput is the input schema for search_notes.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the search query; phrase it as a question or specific keywords"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results to return"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        retrieval.ToolName,
		Description: retrieval.Description,
	}, s.handleSearchNotes)
}

// handleSearchNotes applies the same defaults and cap as the chat tool.
func (s *Server) handleSearchNotes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, models.QueryResponse, error) {
	results, err := s.searcher.SearchNotes(ctx, input.Query, input.MaxResults)
	if err != nil {
		s.logger.Debug("mcp search_notes failed", zap.Error(err))
		return nil, models.QueryResponse{}, err
	}
	return nil, models.QueryResponse{Query: input.Query, Results: results}, nil
}
