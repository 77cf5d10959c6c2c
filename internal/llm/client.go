// Package llm is a client for OpenAI-compatible chat completion APIs with tool calling.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/agent"
	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

const provider = "openai"

// Config holds connection settings for a /chat/completions endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements agent.Agent over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a logger for requests.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient validates cfg. A missing API key or base URL is a configuration error.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperr.Configf("chat API key is not set")
	}
	if cfg.BaseURL == "" {
		return nil, apperr.Configf("chat base URL is not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second // generous for slow model responses
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c, nil
}

// wireMessage differs from models.Message in sending a null content for
// assistant turns that only carry tool calls; some providers reject "".
type wireMessage struct {
	Role       string            `json:"role"`
	Content    *string           `json:"content"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []wireMessage     `json:"messages"`
	Tools       []models.ToolSpec `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage models.Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func toWire(msgs []models.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		w := wireMessage{Role: m.Role, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID, Name: m.Name}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			content := m.Content
			w.Content = &content
		}
		out[i] = w
	}
	return out
}

// Next sends the conversation and returns the model's reply.
func (c *Client) Next(ctx context.Context, req agent.Request) (*agent.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model:       model,
		Messages:    toWire(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("chat request",
		zap.String("model", model), zap.Int("messages", len(req.Messages)), zap.Int("tools", len(req.Tools)))
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.fail(0, true, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(resp.StatusCode, true, fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, c.fail(resp.StatusCode, retryable, errors.New(apperr.BodyMessage(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, c.fail(resp.StatusCode, false, fmt.Errorf("decode response: %w", err))
	}
	// Some gateways report errors with a 200 status.
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, c.fail(resp.StatusCode, false, errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, c.fail(resp.StatusCode, false, errors.New("response has no choices"))
	}

	choice := parsed.Choices[0]
	msg := models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: choice.Message.ToolCalls,
	}
	if choice.Message.Content != nil {
		msg.Content = *choice.Message.Content
	}
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].Type == "" {
			msg.ToolCalls[i].Type = "function"
		}
	}
	c.logger.Debug("chat response",
		zap.String("model", parsed.Model),
		zap.String("finish_reason", choice.FinishReason),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &agent.Response{ID: parsed.ID, Model: parsed.Model, Message: msg, Usage: parsed.Usage}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) fail(status int, retryable bool, err error) error {
	return &apperr.ServiceError{
		Provider:   provider,
		Op:         "chat/completions",
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
}
