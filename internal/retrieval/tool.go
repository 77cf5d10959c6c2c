// Package retrieval exposes the note index to the agent as the search_notes tool.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/index"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

const (
	ToolName = "search_notes"

	defaultResults = 5
	maxResults     = 20
)

// Description tells the model when to call the tool.
const Description = "Search the user's personal knowledge base of indexed Markdown notes. " +
	"Use this tool when the user asks questions that might be answered by their notes. " +
	"You can call it several times with different queries to gather comprehensive information. " +
	"It returns the most relevant text chunks with their source file paths and similarity scores."

// Tool runs semantic search against whichever index the handle currently holds.
type Tool struct {
	handle         *index.Handle
	embedder       embedding.Embedder
	defaultResults int
	maxResults     int
	logger         *zap.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithLimits sets the result count used when none is requested and the upper bound.
func WithLimits(defaultN, maxN int) Option {
	return func(t *Tool) {
		if maxN > 0 {
			t.maxResults = maxN
		}
		if defaultN > 0 {
			t.defaultResults = min(defaultN, t.maxResults)
		}
	}
}

// WithLogger sets a logger for tool calls.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) { t.logger = l }
}

// NewTool creates the search_notes tool. embedder must be the one the index was built with.
func NewTool(handle *index.Handle, embedder embedding.Embedder, opts ...Option) *Tool {
	t := &Tool{
		handle:         handle,
		embedder:       embedder,
		defaultResults: defaultResults,
		maxResults:     maxResults,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = utils.OrNop(t.logger)
	return t
}

// Limits returns the default and maximum result counts.
func (t *Tool) Limits() (defaultN, maxN int) {
	return t.defaultResults, t.maxResults
}

// SearchNotes embeds query and returns up to maxResults chunks, best first.
// maxResults <= 0 selects the default; larger values are capped. An index with
// no entries yields an empty list, not an error.
func (t *Tool) SearchNotes(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &apperr.ToolError{Tool: ToolName, Reason: "query must not be empty"}
	}
	store := t.handle.Current()
	if store == nil {
		return nil, apperr.ErrIndexNotLoaded
	}
	k := models.ClampResults(maxResults, t.defaultResults, t.maxResults)
	if store.Len() == 0 {
		return []models.SearchResult{}, nil
	}

	vec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := store.Search(ctx, vec, k)
	if errors.Is(err, apperr.ErrEmptyIndex) {
		return []models.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	t.logger.Debug("search_notes",
		zap.String("query", utils.Truncate(query, 80)),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// Arguments are the decoded parameters of a search_notes call.
type Arguments struct {
	Query      string
	MaxResults int
}

// ParseArguments decodes the JSON arguments the model sent. A missing query,
// malformed JSON or wrongly typed fields are tool invocation errors.
func ParseArguments(raw string) (Arguments, error) {
	var in struct {
		Query      *string  `json:"query"`
		MaxResults *float64 `json:"max_results"`
	}
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return Arguments{}, &apperr.ToolError{Tool: ToolName, Reason: "malformed arguments", Err: err}
	}
	if in.Query == nil || strings.TrimSpace(*in.Query) == "" {
		return Arguments{}, &apperr.ToolError{Tool: ToolName, Reason: "missing required argument query"}
	}
	args := Arguments{Query: *in.Query}
	if in.MaxResults != nil {
		n := *in.MaxResults
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return Arguments{}, &apperr.ToolError{Tool: ToolName, Reason: "max_results must be an integer"}
		}
		args.MaxResults = int(min(max(n, -1), math.MaxInt32))
	}
	return args, nil
}

// Invoke runs a tool call by name with raw JSON arguments and returns the JSON
// payload handed back to the model.
func (t *Tool) Invoke(ctx context.Context, name, rawArgs string) (string, error) {
	if name != ToolName {
		return "", &apperr.ToolError{Tool: name, Reason: "unknown tool"}
	}
	args, err := ParseArguments(rawArgs)
	if err != nil {
		return "", err
	}
	results, err := t.SearchNotes(ctx, args.Query, args.MaxResults)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(models.QueryResponse{Query: args.Query, Results: results})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Specs returns the tool catalog advertised to the model.
func (t *Tool) Specs() []models.ToolSpec {
	return []models.ToolSpec{{
		Type: "function",
		Function: models.FunctionSpec{
			Name:        ToolName,
			Description: Description,
			Parameters:  t.Schema(),
		},
	}}
}

// Schema is the JSON Schema of the tool's parameters.
func (t *Tool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type": "string",
				"description": "The search query. Phrase it as a question or keywords that would " +
					"find relevant information in the notes. Be specific.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return",
				"default":     t.defaultResults,
				"minimum":     1,
				"maximum":     t.maxResults,
			},
		},
		"required": []string{"query"},
	}
}
