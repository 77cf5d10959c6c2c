package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/shiori/internal/apperr"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvBuilderToken, EnvOpenAIKey} {
		t.Setenv(k, "")
		// godotenv skips variables that exist, even when empty.
		_ = os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 30s
chunking:
  size: 200
  overlap: 20
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Chunking.Size != 200 || cfg.Chunking.OverlapOrDefault() != 20 {
		t.Errorf("unexpected chunking: size=%d overlap=%d", cfg.Chunking.Size, cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_defaults(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Chunking.Size != DefaultChunkSize || cfg.Chunking.OverlapOrDefault() != DefaultChunkOverlap {
		t.Errorf("chunking defaults: %d/%d", cfg.Chunking.Size, cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Retrieval.DefaultResults != 5 || cfg.Retrieval.MaxResults != 20 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Agent.MaxTurns != 5 || cfg.Agent.Model != DefaultAgentModel {
		t.Errorf("agent defaults: %+v", cfg.Agent)
	}
	if cfg.Agent.TemperatureOrDefault() != 0.7 {
		t.Errorf("temperature = %v", cfg.Agent.TemperatureOrDefault())
	}
	if cfg.Embedding.Model != DefaultEmbeddingModel || cfg.Embedding.BatchSize != 100 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if len(cfg.Corpus.Extensions) != 1 || cfg.Corpus.Extensions[0] != ".md" {
		t.Errorf("extensions = %v", cfg.Corpus.Extensions)
	}
}

func TestLoad_zeroOverlapIsKept(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, "chunking:\n  size: 100\n  overlap: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Chunking.OverlapOrDefault(); got != 0 {
		t.Errorf("overlap = %d, want 0", got)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, `
storage:
  index_path: "./data/notes.index"
  metadata_path: "./data/notes.db"
corpus:
  root: "./notes"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "notes.index"); cfg.Storage.IndexPath != want {
		t.Errorf("index_path = %q, want %q", cfg.Storage.IndexPath, want)
	}
	if want := filepath.Join(dir, "data", "notes.db"); cfg.Storage.MetadataPath != want {
		t.Errorf("metadata_path = %q, want %q", cfg.Storage.MetadataPath, want)
	}
	if want := filepath.Join(dir, "notes"); cfg.Corpus.Root != want {
		t.Errorf("corpus.root = %q, want %q", cfg.Corpus.Root, want)
	}
}

func TestLoad_invalidChunking(t *testing.T) {
	clearKeys(t)
	tests := []struct {
		name    string
		content string
	}{
		{"overlap equals size", "chunking:\n  size: 50\n  overlap: 50\n"},
		{"overlap exceeds size", "chunking:\n  size: 50\n  overlap: 80\n"},
		{"negative size", "chunking:\n  size: -1\n"},
		{"negative overlap", "chunking:\n  size: 50\n  overlap: -1\n"},
		{"default above max", "retrieval:\n  default_results: 30\n  max_results: 10\n"},
		{"unknown provider", "embedding:\n  provider: word2vec\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoad_secretsFromDotEnv(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, "debug: false\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("AI_BUILDER_TOKEN=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "from-dotenv" || cfg.Agent.APIKey != "from-dotenv" {
		t.Errorf("api keys not loaded: embedding=%q agent=%q", cfg.Embedding.APIKey, cfg.Agent.APIKey)
	}
}

func TestLoad_environmentWinsOverDotEnv(t *testing.T) {
	clearKeys(t)
	t.Setenv(EnvAPIKey, "from-env")
	path := writeConfig(t, "debug: false\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("SHIORI_API_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.Embedding.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	cfg, err := Default(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Port = 9123
	path := filepath.Join(dir, "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9123 {
		t.Errorf("port = %d", loaded.Server.Port)
	}
	if loaded.Storage.IndexPath != cfg.Storage.IndexPath {
		t.Errorf("index_path = %q, want %q", loaded.Storage.IndexPath, cfg.Storage.IndexPath)
	}
}
