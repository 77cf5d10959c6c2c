package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/shiori/internal/apperr"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestOpenAIEmbedder_EmbedBatchOrdersByIndex(t *testing.T) {
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth=%q", r.Header.Get("Authorization"))
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "m" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1,0]},
			{"index":0,"embedding":[1,0,0]}
		]}`))
	})
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Errorf("results not ordered by index: %v", out)
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"server error", http.StatusBadGateway, `upstream failed`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, false},
		{"malformed json", http.StatusOK, `{"data":`, false},
		{"wrong count", http.StatusOK, `{"data":[]}`, false},
		{"wrong dimension", http.StatusOK, `{"data":[{"index":0,"embedding":[1,2]}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := e.Embed(context.Background(), "x")
			if !errors.Is(err, apperr.ErrService) {
				t.Fatalf("expected service error, got %v", err)
			}
			if apperr.IsRetryable(err) != tt.retryable {
				t.Errorf("retryable=%v, want %v", apperr.IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestOpenAIEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: url, APIKey: "k", Model: "m", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Embed(context.Background(), "x")
	if !errors.Is(err, apperr.ErrService) || !apperr.IsRetryable(err) {
		t.Errorf("expected retryable service error, got %v", err)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: "http://x", Model: "m", Dimensions: 3})
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestOpenAIEmbedder_LearnsDimensionFromFirstResponse(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.6,0.8,0,0]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	t.Cleanup(srv.Close)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("zero dimensions should be accepted: %v", err)
	}
	if e.Dimensions() != 0 {
		t.Fatalf("Dimensions before first call = %d, want 0", e.Dimensions())
	}
	out, err := e.Embed(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 || e.Dimensions() != 4 {
		t.Fatalf("len=%d Dimensions=%d, want 4", len(out), e.Dimensions())
	}
	// Once learned, the dimension is enforced.
	_, err = e.Embed(context.Background(), "second")
	if !errors.Is(err, apperr.ErrService) {
		t.Errorf("expected service error for a 2-dimensional embedding, got %v", err)
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions changed to %d", e.Dimensions())
	}
}

func TestNewOpenAIEmbedder_RejectsNegativeDimensions(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: "http://x", APIKey: "k", Model: "m", Dimensions: -1})
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
