package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/agent"
	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/index"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/storage"
)

const testDim = 128

var testNotes = []struct{ path, text string }{
	{"garden.md", "tomato seedlings need warmth and daily watering"},
	{"bikes.md", "replace the chain every three thousand kilometres"},
	{"books.md", "reading list for winter: novels and essays"},
}

type fixture struct {
	srv    *Server
	handle *index.Handle
	cfg    *config.Config
}

func newFixture(t *testing.T, loaded bool, opts ...Option) *fixture {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Embedding.Dimensions = testDim
	emb := embedding.NewHashEmbedder(testDim)
	handle := index.NewHandle("flat")
	if loaded {
		handle.Swap(buildStore(t, emb))
	}
	tool := retrieval.NewTool(handle, emb, retrieval.WithLimits(2, 3))
	return &fixture{
		srv:    NewServer(handle, tool, cfg, zap.NewNop(), opts...),
		handle: handle,
		cfg:    cfg,
	}
}

func buildStore(t *testing.T, emb embedding.Embedder) *index.Store {
	t.Helper()
	var entries []models.IndexEntry
	for _, n := range testNotes {
		vec, err := emb.Embed(context.Background(), n.text)
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, models.IndexEntry{
			Embedding: vec,
			Chunk:     models.Chunk{SourceID: n.path, TotalChunks: 1, End: len(n.text), Text: n.text},
		})
	}
	store, err := index.Build("flat", entries, storage.NewManifest(testDim, 500, 50))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	decode(t, w, &out)
	return out["error"]
}

func TestHandleQuery(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodPost, "/api/v1/query", models.QueryRequest{Query: "tomato watering"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.QueryResponse
	decode(t, w, &out)
	if out.Query != "tomato watering" {
		t.Errorf("query: got %q", out.Query)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results: got %d, want default of 2", len(out.Results))
	}
	if out.Results[0].FilePath != "garden.md" {
		t.Errorf("top result: got %s", out.Results[0].FilePath)
	}
}

func TestHandleQuery_MaxResultsCapped(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodPost, "/api/v1/query", models.QueryRequest{Query: "chain", MaxResults: 50})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.QueryResponse
	decode(t, w, &out)
	if len(out.Results) != 3 {
		t.Errorf("results: got %d, want 3", len(out.Results))
	}
}

func TestHandleQuery_BadRequests(t *testing.T) {
	f := newFixture(t, true)
	for name, body := range map[string]interface{}{
		"empty query":  models.QueryRequest{Query: "   "},
		"invalid json": "{not json",
	} {
		t.Run(name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/query", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
			if errorMessage(t, w) == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestHandleQuery_IndexNotLoaded(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/api/v1/query", models.QueryRequest{Query: "anything"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	decode(t, w, &out)
	if out["status"] != "degraded" || out["index_loaded"] != false || out["index_size"] != float64(0) {
		t.Errorf("unloaded health: %v", out)
	}

	f.handle.Swap(buildStore(t, embedding.NewHashEmbedder(testDim)))
	w = f.do(t, http.MethodGet, "/health", nil)
	out = nil
	decode(t, w, &out)
	if out["status"] != "healthy" || out["index_loaded"] != true || out["index_size"] != float64(3) {
		t.Errorf("loaded health: %v", out)
	}
	if out["dimensions"] != float64(testDim) {
		t.Errorf("dimensions: %v", out["dimensions"])
	}
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Health healthResponse         `json:"health"`
		Build  map[string]interface{} `json:"build"`
		Config map[string]interface{} `json:"config"`
	}
	decode(t, w, &out)
	if !out.Health.Loaded || out.Health.Entries != 3 {
		t.Errorf("health: %+v", out.Health)
	}
	if out.Build["build_id"] == "" || out.Build["chunk_size"] != float64(500) {
		t.Errorf("build: %v", out.Build)
	}
	if out.Config["max_results"] != float64(3) || out.Config["chat_enabled"] != false {
		t.Errorf("config: %v", out.Config)
	}
}

func TestHandleReload(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/api/v1/index/reload", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("reload without artifacts: got %d, want 404", w.Code)
	}

	store := buildStore(t, embedding.NewHashEmbedder(testDim))
	if err := store.Save(f.srv.artifacts()); err != nil {
		t.Fatal(err)
	}
	w = f.do(t, http.MethodPost, "/api/v1/index/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: got %d, body %s", w.Code, w.Body.String())
	}
	if cur := f.handle.Current(); cur == nil || cur.Len() != 3 {
		t.Fatal("reloaded store not attached")
	}
}

func TestHandleReload_CorruptKeepsCurrent(t *testing.T) {
	f := newFixture(t, true)
	before := f.handle.Current()
	a := f.srv.artifacts()
	if err := before.Save(a); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.VectorPath, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := f.do(t, http.MethodPost, "/api/v1/index/reload", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", w.Code)
	}
	if f.handle.Current() != before {
		t.Error("failed reload replaced the serving store")
	}
}

func TestHandleChat_NotConfigured(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func newChatFixture(t *testing.T, next agent.AgentFunc) *fixture {
	t.Helper()
	f := newFixture(t, true)
	emb := embedding.NewHashEmbedder(testDim)
	tool := retrieval.NewTool(f.handle, emb)
	orch := agent.New(next, tool, agent.WithMaxTurns(3))
	f.srv = NewServer(f.handle, tool, f.cfg, zap.NewNop(), WithChat(orch))
	return f
}

func TestHandleChat(t *testing.T) {
	turn := 0
	f := newChatFixture(t, func(_ context.Context, req agent.Request) (*agent.Response, error) {
		turn++
		if turn == 1 {
			return &agent.Response{ID: "chat-1", Model: "m", Message: models.Message{
				ToolCalls: []models.ToolCall{{ID: "c1", Type: "function",
					Function: models.FunctionCall{Name: retrieval.ToolName, Arguments: `{"query":"bike chain"}`}}},
			}}, nil
		}
		last := req.Messages[len(req.Messages)-1]
		if last.Role != models.RoleTool {
			t.Errorf("expected tool result before final turn, got %s", last.Role)
		}
		return &agent.Response{ID: "chat-1", Model: "m", Message: models.Message{Content: "Every 3000 km."},
			Usage: models.Usage{TotalTokens: 7}}, nil
	})
	w := f.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "when do I replace my chain?"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.ChatResponse
	decode(t, w, &out)
	if out.Message.Role != models.RoleAssistant || out.Message.Content != "Every 3000 km." {
		t.Errorf("message: %+v", out.Message)
	}
	if out.State != "DONE" || out.Turns != 2 || out.ToolCalls != 1 || out.ID != "chat-1" {
		t.Errorf("response: %+v", out)
	}
}

func TestHandleChat_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  interface{}
		err  error
		want int
	}{
		{"no messages", models.ChatRequest{}, nil, http.StatusBadRequest},
		{"bad body", "[", nil, http.StatusBadRequest},
		{"provider down", nil, &apperr.ServiceError{Provider: "openai", Op: "chat/completions", StatusCode: 500,
			Err: errors.New("boom")}, http.StatusBadGateway},
		{"timeout", nil, context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(t, func(context.Context, agent.Request) (*agent.Response, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &agent.Response{Message: models.Message{Content: "ok"}}, nil
			})
			req := tt.req
			if req == nil {
				req = models.ChatRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "q"}}}
			}
			w := f.do(t, http.MethodPost, "/api/v1/chat", req)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleRoot(t *testing.T) {
	f := newFixture(t, false, WithVersion("1.2.3"))
	w := f.do(t, http.MethodGet, "/", nil)
	var out map[string]interface{}
	decode(t, w, &out)
	if out["version"] != "1.2.3" || out["tool"] != retrieval.ToolName {
		t.Errorf("root: %v", out)
	}
}
