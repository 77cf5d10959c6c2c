package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/shiori/internal/models"
)

func TestClient_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/query" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req models.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(models.QueryResponse{
			Query:   req.Query,
			Results: []models.SearchResult{{FilePath: "a.md", Score: 0.5}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 0)
	resp, err := c.Query(context.Background(), models.QueryRequest{Query: "hello", MaxResults: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "hello" || len(resp.Results) != 1 || resp.Results[0].FilePath != "a.md" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"index not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Status(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Message != "index not loaded" {
		t.Errorf("err = %+v", se)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := NewClient(url, 0).Reload(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}
