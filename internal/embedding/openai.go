package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hyperjump/shiori/internal/apperr"
)

const providerOpenAI = "openai"

// OpenAIConfig holds configuration for an OpenAI-compatible /embeddings endpoint.
// A zero Dimensions is learned from the first response.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions atomic.Int64
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder validates cfg and returns an embedder. A missing API key or
// negative dimension is a configuration error.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, apperr.Configf("embedding API key is not set")
	}
	if cfg.BaseURL == "" {
		return nil, apperr.Configf("embedding base URL is not set")
	}
	if cfg.Model == "" {
		return nil, apperr.Configf("embedding model is not set")
	}
	if cfg.Dimensions < 0 {
		return nil, apperr.Configf("embedding dimensions must not be negative, got %d", cfg.Dimensions)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	e := &OpenAIEmbedder{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
	e.dimensions.Store(int64(cfg.Dimensions))
	return e, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request. Results are ordered to match texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.fail(0, ctx.Err() == nil, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.fail(resp.StatusCode, true, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, e.fail(resp.StatusCode, retryable, errors.New(apperr.BodyMessage(payload)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, e.fail(resp.StatusCode, false, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return nil, e.fail(resp.StatusCode, false, errors.New(parsed.Error.Message))
	}
	if len(parsed.Data) != len(texts) {
		return nil, e.fail(resp.StatusCode, false,
			fmt.Errorf("got %d embeddings for %d inputs", len(parsed.Data), len(texts)))
	}

	dim := e.learnDimension(len(parsed.Data[0].Embedding))
	if dim == 0 {
		return nil, e.fail(resp.StatusCode, false, errors.New("empty embedding"))
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, e.fail(resp.StatusCode, false, fmt.Errorf("invalid embedding index %d", d.Index))
		}
		if len(d.Embedding) != dim {
			return nil, e.fail(resp.StatusCode, false,
				fmt.Errorf("embedding has dimension %d, expected %d", len(d.Embedding), dim))
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension, or 0 while it is still unknown.
func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// learnDimension fixes the dimension to n if none is set yet and returns the
// dimension every embedding must have.
func (e *OpenAIEmbedder) learnDimension(n int) int {
	if n > 0 && e.dimensions.CompareAndSwap(0, int64(n)) {
		return n
	}
	return int(e.dimensions.Load())
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OpenAIEmbedder) fail(status int, retryable bool, err error) error {
	return &apperr.ServiceError{
		Provider:   providerOpenAI,
		Op:         "embeddings",
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
}
