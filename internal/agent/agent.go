// Package agent runs the tool-calling conversation loop between a chat model
// and the search_notes tool.
package agent

import (
	"context"

	"github.com/hyperjump/shiori/internal/models"
)

// Request is everything the model sees on one turn.
type Request struct {
	Model       string
	Messages    []models.Message
	Tools       []models.ToolSpec
	Temperature float64
	MaxTokens   int // 0 leaves the limit to the provider
}

// Response is one model turn: either a final answer or a set of tool calls.
type Response struct {
	ID      string
	Model   string
	Message models.Message
	Usage   models.Usage
}

// Agent is the language model that decides whether to call tools.
type Agent interface {
	Next(ctx context.Context, req Request) (*Response, error)
}

// ToolExecutor runs tool calls requested by the Agent.
type ToolExecutor interface {
	Invoke(ctx context.Context, name, arguments string) (string, error)
	Specs() []models.ToolSpec
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, req Request) (*Response, error)

func (f AgentFunc) Next(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// DefaultSystemPrompt instructs the model to search the notes on its own.
const DefaultSystemPrompt = "You are a helpful assistant with access to the user's personal knowledge base " +
	"of Markdown notes. When a question might be answered by the notes, use the search_notes tool " +
	"without asking first.\n\n" +
	"Guidelines for using search_notes:\n" +
	"1. Search whenever the question relates to information that might be in the notes.\n" +
	"2. You may search several times with different queries.\n" +
	"3. If the first results are not enough, refine the query using what you learned.\n" +
	"4. Cite the source file paths of any information you use.\n" +
	"5. If the notes do not contain the answer, say so clearly.\n" +
	"6. Combine information from several notes for complex questions."
