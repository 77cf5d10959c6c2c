// Package main is the Shiori CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/mcp"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/hyperjump/shiori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "init":
		runInit()
	case "index":
		runIndex()
	case "serve", "server":
		runServe()
	case "query", "search":
		runQuery()
	case "chat":
		runChat()
	case "mcp":
		runMCP()
	case "status":
		runStatus()
	case "reload":
		runReload()
	case "version", "--version", "-v":
		fmt.Printf("shiori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads the config and creates the logger and components.
func setup(configPath string, debug bool) (*Components, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return components, logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory to write config.yaml into")
	force := fs.Bool("force", false, "overwrite an existing config.yaml")
	_ = fs.Parse(os.Args[2:])

	abs, err := filepath.Abs(*dir)
	if err != nil {
		fatalf("Invalid directory: %v", err)
	}
	path := filepath.Join(abs, "config.yaml")
	if _, err := os.Stat(path); err == nil && !*force {
		fatalf("%s already exists (use --force to overwrite)", path)
	}
	cfg, err := config.Default(abs)
	if err != nil {
		fatalf("Failed to build default config: %v", err)
	}
	if err := config.Save(path, cfg); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Printf("Set %s (or %s) before indexing with the openai provider.\n", config.EnvAPIKey, config.EnvOpenAIKey)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	format := parseFormat(*outputFormat)

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	root := components.Config.Corpus.Root
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	if root == "" {
		fatalf("Usage: shiori index [flags] <notes-directory> (or set corpus.root)")
	}

	ctx, stop := signalContext()
	defer stop()
	report, err := components.Indexer.Refresh(ctx, root, components.Artifacts(), nil)
	if report != nil {
		if werr := cli.WriteReport(os.Stdout, report, format); werr != nil {
			fatalf("Output failed: %v", werr)
		}
	}
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	if format == cli.OutputText {
		fmt.Printf("Saved index to %s and %s\n", components.Config.Storage.IndexPath, components.Config.Storage.MetadataPath)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "rebuild the index when notes change (also corpus.watch)")
	withMCP := fs.Bool("mcp", true, "mount the MCP streamable HTTP endpoint at /mcp")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	cfg := components.Config

	if err := components.LoadIndex(); err != nil {
		logger.Error("index not loaded", zap.Error(err))
	}

	ctx, stop := signalContext()
	defer stop()

	if *watch || cfg.Corpus.Watch {
		if cfg.Corpus.Root == "" {
			logger.Fatal("watching requires corpus.root")
		}
		w := watcher.NewWatcher(cfg.Corpus.Root, components.Indexer.Extensions(),
			func(ctx context.Context, paths []string) {
				logger.Info("notes changed, rebuilding index", zap.Int("paths", len(paths)))
				if _, err := components.Indexer.Refresh(ctx, cfg.Corpus.Root, components.Artifacts(), components.Handle); err != nil {
					logger.Warn("index rebuild failed; keeping current index", zap.Error(err))
				}
			},
			watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv, err := components.Server(*withMCP)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search the saved index directly)")
	limit := fs.Int("limit", 0, "number of results (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	format := parseFormat(*outputFormat)

	query := joinQuery(fs.Args())
	if query == "" {
		fatalf("Usage: shiori query [flags] <query>")
	}

	ctx, stop := signalContext()
	defer stop()

	var response *models.QueryResponse
	if *serverURL != "" {
		res, err := cli.NewClient(*serverURL, 0).Query(ctx, models.QueryRequest{Query: query, MaxResults: *limit})
		if err != nil {
			fatalf("Query failed: %v", err)
		}
		response = res
	} else {
		components, logger := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if err := components.LoadIndex(); err != nil {
			fatalf("Failed to load index: %v", err)
		}
		results, err := components.Tool.SearchNotes(ctx, query, *limit)
		if err != nil {
			fatalf("Query failed: %v", err)
		}
		response = &models.QueryResponse{Query: query, Results: results}
	}
	if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = run the agent locally)")
	model := fs.String("model", "", "chat model (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	format := parseFormat(*outputFormat)

	message := joinQuery(fs.Args())
	if message == "" {
		fatalf("Usage: shiori chat [flags] <question>")
	}
	req := models.ChatRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: message}},
		Model:    *model,
	}

	ctx, stop := signalContext()
	defer stop()

	var response *models.ChatResponse
	if *serverURL != "" {
		res, err := cli.NewClient(*serverURL, 0).Chat(ctx, req)
		if err != nil {
			fatalf("Chat failed: %v", err)
		}
		response = res
	} else {
		components, logger := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if components.Chat == nil {
			fatalf("Chat requires an API key; set %s", config.EnvAPIKey)
		}
		if err := components.LoadIndex(); err != nil {
			fatalf("Failed to load index: %v", err)
		}
		res, err := components.Chat.Run(ctx, req)
		if err != nil {
			fatalf("Chat failed: %v", err)
		}
		response = &models.ChatResponse{
			ID:        res.ID,
			Model:     res.Model,
			Message:   models.ReplyMessage{Role: models.RoleAssistant, Content: res.Message.Content},
			Usage:     res.Usage,
			State:     res.State.String(),
			Turns:     res.Turns,
			ToolCalls: res.ToolCalls,
		}
	}
	if err := cli.WriteChatResponse(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	addr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	if err := components.LoadIndex(); err != nil {
		logger.Fatal("Failed to load index", zap.Error(err))
	}

	s, err := mcp.NewServer(components.Tool, version, logger)
	if err != nil {
		logger.Fatal("Failed to create MCP server", zap.Error(err))
	}
	ctx, stop := signalContext()
	defer stop()
	if *addr != "" {
		err = s.RunHTTP(ctx, *addr)
	} else {
		err = s.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = inspect the saved index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status map[string]interface{}
	if *serverURL != "" {
		ctx, stop := signalContext()
		defer stop()
		res, err := cli.NewClient(*serverURL, 30*time.Second).Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res
	} else {
		components, logger := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if err := components.LoadIndex(); err != nil {
			fatalf("Failed to load index: %v", err)
		}
		status = localStatus(components)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// localStatus mirrors GET /api/v1/status for an index read from disk.
func localStatus(c *Components) map[string]interface{} {
	cfg := c.Config
	h := c.Handle.Health()
	status := map[string]interface{}{
		"health": map[string]interface{}{
			"index_loaded": h.Loaded,
			"index_size":   h.Entries,
			"dimensions":   h.Dimensions,
		},
		"config": map[string]interface{}{
			"index_type":           cfg.Storage.IndexType,
			"index_path":           cfg.Storage.IndexPath,
			"metadata_path":        cfg.Storage.MetadataPath,
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_model":      cfg.Embedding.Model,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"chunk_size":           cfg.Chunking.Size,
			"chunk_overlap":        cfg.Chunking.OverlapOrDefault(),
			"chat_enabled":         c.Chat != nil,
		},
	}
	if store := c.Handle.Current(); store != nil {
		m := store.Manifest()
		status["build"] = map[string]interface{}{
			"build_id":      m.BuildID.String(),
			"created_at":    m.CreatedAt.Format(time.RFC3339),
			"chunk_size":    m.ChunkSize,
			"chunk_overlap": m.ChunkOverlap,
		}
	}
	if n, err := c.Artifacts().DiskUsage(); err == nil {
		status["disk_usage_bytes"] = n
	}
	return status
}

func runReload() {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used to find the server address)")
	serverURL := fs.String("server", "", "server URL (default from config)")
	_ = fs.Parse(os.Args[2:])

	url := *serverURL
	if url == "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		url = serverURLFromConfig(cfg)
	}
	ctx, stop := signalContext()
	defer stop()
	res, err := cli.NewClient(url, 30*time.Second).Reload(ctx)
	if err != nil {
		fatalf("Reload failed: %v", err)
	}
	fmt.Printf("Reloaded index: %v entries\n", res["index_size"])
}

func serverURLFromConfig(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

// joinQuery joins positional args into one query, trimming blanks.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags (and their values) ahead of positional args so that
// "shiori query my question --limit 3" parses the same as the flags-first form.
// Go's flag package stops at the first positional argument.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isBoolFlag(a) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, a)
	}
	return append(flags, positional...)
}

func isBoolFlag(a string) bool {
	switch strings.TrimLeft(a, "-") {
	case "debug", "watch", "mcp", "force":
		return true
	}
	return false
}

func printUsage() {
	fmt.Println(`shiori - Ask questions about your notes

Usage:
  shiori init [flags]               Write a default config.yaml
  shiori index [flags] [dir]        Build the index from a notes folder
  shiori serve [flags]              Start the HTTP server
  shiori query [flags] <query>      Search the notes
  shiori chat [flags] <question>    Ask the agent a question
  shiori mcp [flags]                Serve search_notes over MCP (stdio by default)
  shiori status [flags]             Show index and configuration status
  shiori reload [flags]             Ask a running server to reload the index
  shiori version                    Show version
  shiori help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shiori/config.yaml,
                     or ./config.yaml when present)

Serve Flags:
  --debug            Enable debug logging
  --watch            Rebuild the index when notes change
  --mcp              Mount the MCP endpoint at /mcp (default: true)

Query / Chat / Status Flags:
  --server string    Server URL; empty uses the saved index directly
  --limit int        Number of results (query only)
  --model string     Chat model (chat only)
  --output string    Output format: text or json (default: text)

MCP Flags:
  --http string      Serve streamable HTTP on this address instead of stdio

Examples:
  shiori init
  shiori index ~/notes
  shiori serve --watch
  shiori query "what did I decide about the roof repair"
  shiori query --server http://localhost:8000 --output json "tax deadlines"
  shiori chat "summarize my notes on sourdough"
  shiori mcp --http localhost:8765`)
}
