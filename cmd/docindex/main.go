// Package main is the docindex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/finsight/docindex/internal/chunker"
	"github.com/finsight/docindex/internal/config"
	"github.com/finsight/docindex/internal/embedding"
	"github.com/finsight/docindex/internal/index"
	"github.com/finsight/docindex/internal/loader"
	"github.com/finsight/docindex/internal/retriever"
	"github.com/finsight/docindex/internal/server"
	"github.com/finsight/docindex/internal/watcher"
	"github.com/finsight/docindex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docindex/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if neither
// exists the built-in defaults are used. Explicit paths must exist.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			var cfg config.Config
			config.ApplyDefaults(&cfg)
			return &cfg, nil
		}
	}
	return config.Load(path)
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("docindex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var ingestWatcher *watcher.Watcher
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Ingest.Watch && cfg.Ingest.Directory != "" {
		ld := components.Loader
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		ingestWatcher = watcher.NewWatcher(
			cfg.Ingest.Directory,
			cfg.Ingest.Extensions,
			func(path string) {
				if _, err := ld.LoadFile(context.Background(), path); err != nil {
					logger.Warn("ingest file failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := ingestWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start ingest watcher", zap.Error(err))
		}
		ingestWatcher.SyncExistingFiles()
	}

	srv := server.NewServer(components.Service, components.Loader, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if ingestWatcher != nil {
		ingestWatcher.Stop()
	}
	watchCancel()
	if err := components.Service.Save(); err != nil {
		logger.Warn("final index save failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docindex index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		files, chunks, err := components.Loader.LoadDirectory(ctx, path, cfg.Ingest.Extensions)
		if err != nil {
			fmt.Printf("Indexing directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %d file(s), %d chunk(s) from %s\n", files, chunks, path)
		return
	}
	chunks, err := components.Loader.LoadFile(ctx, path)
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d chunk(s) from %s\n", chunks, path)
}

// queryArgsReorder moves flags that appear after the query text to the front
// so flag.Parse() sees them. The flag package stops at the first non-flag arg.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = query the index directly)")
	k := fs.Int("k", 0, "number of results (0 = config default)")
	threshold := fs.Float64("score-threshold", index.NoScoreThreshold, "minimum similarity score")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(queryArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: docindex query [flags] <text>")
		os.Exit(1)
	}
	queryText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryText == "" {
		fmt.Println("Usage: docindex query [flags] <text>")
		os.Exit(1)
	}

	var results []queryResult
	if *serverURL != "" {
		req := map[string]interface{}{"query": queryText, "k": *k}
		if *threshold != index.NoScoreThreshold {
			req["score_threshold"] = *threshold
		}
		resp, err := queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		results = resp.Results
	} else {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		scored, err := components.Service.Query(context.Background(), queryText, *k, *threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		for _, sc := range scored {
			results = append(results, queryResult{
				Text:         sc.Chunk.Text,
				Score:        sc.Score,
				DocumentID:   sc.Chunk.DocumentID,
				SectionLabel: sc.Chunk.SectionLabel,
				Metadata:     sc.Chunk.Metadata,
			})
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(results) == 0 {
			fmt.Println("No results.")
			return
		}
		for i, r := range results {
			fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, snippet(r.Text, 200))
			if r.SectionLabel != "" {
				fmt.Printf("   section: %s\n", r.SectionLabel)
			}
			if company := r.Metadata["company"]; company != "" {
				fmt.Printf("   company: %s\n", company)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// snippet collapses whitespace and truncates to at most max runes, never
// splitting a multi-byte character.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// queryResult mirrors one element of the server's query response.
type queryResult struct {
	Text         string            `json:"text"`
	Score        float64           `json:"score"`
	DocumentID   string            `json:"document_id"`
	SectionLabel string            `json:"section_label,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type queryHTTPResponse struct {
	Results      []queryResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

func queryViaHTTP(serverURL string, req map[string]interface{}) (*queryHTTPResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out queryHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

type statsResponse struct {
	TotalDocuments  int   `json:"total_documents"`
	VectorDimension int   `json:"vector_dimension"`
	IndexSizeBytes  int64 `json:"index_size_bytes"`
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var stats statsResponse
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		s := components.Service.Stats()
		stats = statsResponse{
			TotalDocuments:  s.TotalDocuments,
			VectorDimension: s.VectorDimension,
			IndexSizeBytes:  s.IndexSizeBytes,
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("total_documents:   %d   # count of indexed chunks\n", stats.TotalDocuments)
		fmt.Printf("vector_dimension:  %d\n", stats.VectorDimension)
		fmt.Printf("index_size_bytes:  %d   # persisted artifacts on disk\n", stats.IndexSizeBytes)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Index    *index.Index
	Service  *retriever.Service
	Loader   *loader.Loader
}

func (c *Components) Close() {
	if c.Service != nil {
		_ = c.Service.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		logger.Warn("embedder unavailable, falling back to mock",
			zap.String("provider", cfg.Embedding.Provider),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	ix := index.LoadOrCreate(
		cfg.Index.Dir,
		cfg.Index.Name,
		embedder,
		cfg.Embedding.Dimensions,
		logger,
		index.WithBatchLimit(cfg.Index.BatchLimit),
		index.WithLogger(logger),
	)

	ch := chunker.NewChunker(cfg.Chunking.MaxWordsFullText, cfg.Chunking.MaxWordsSection)
	svc := retriever.NewService(ix, ch, cfg.Index.Dir, cfg.Index.Name,
		retriever.WithLogger(logger),
		retriever.WithTimeout(cfg.Embedding.Timeout()),
		retriever.WithDefaultK(cfg.Query.DefaultK),
	)
	ld := loader.NewLoader(svc, loader.WithLogger(logger))

	logger.Info("index initialized",
		zap.String("dir", cfg.Index.Dir),
		zap.String("name", cfg.Index.Name),
		zap.Int("size", ix.Size()),
		zap.String("provider", cfg.Embedding.Provider))

	return &Components{
		Embedder: embedder,
		Index:    ix,
		Service:  svc,
		Loader:   ld,
	}, nil
}

func printUsage() {
	fmt.Println(`docindex - Semantic document indexing and retrieval

Usage:
  docindex server [flags]          Start the HTTP server
  docindex index [flags] <path>    Index a file or directory
  docindex query [flags] <text>    Query the index
  docindex stats [flags]           Show index statistics
  docindex version                 Show version
  docindex help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/docindex/config.yaml)
  --debug            Enable debug logging

Index Flags:
  --config string    Config file path

Query Flags:
  --config string            Config file path (for direct index mode)
  --server string            Server URL (empty = query the index directly)
  --k int                    Number of results (0 = config default)
  --score-threshold float    Minimum similarity score
  --output string            Output format: text or json (default: text)

Stats Flags:
  --config string    Config file path (for direct index mode)
  --server string    Server URL (empty = read the index directly)
  --output string    Output format: text or json (default: text)

Examples:
  docindex server
  docindex index ./filings
  docindex query "supply chain risk"
  docindex query --k 10 --output json "revenue growth drivers"
  docindex stats --server http://localhost:8003`)
}
