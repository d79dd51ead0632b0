// Package main is the cntsearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/bootstrap"
	"github.com/hyperjump/cntsearch/internal/cli"
	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/indexer"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/server"
	"github.com/hyperjump/cntsearch/internal/watcher"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/cntsearch/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. Returns the config and the path actually loaded.
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

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	return utils.NewLoggerWithFile(debug, utils.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

// setup loads the config and creates the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg, cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("cntsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// watchedFiles lists the files whose replacement triggers an index reload.
func watchedFiles(cfg *config.Config) []string {
	files := []string{cfg.Storage.IndexPath, cfg.Storage.MetaPath}
	if cfg.Storage.MetadataBackend == config.MetadataSQLite {
		files = append(files, cfg.Storage.DatabasePath)
	}
	return files
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Engines, cfg,
		server.WithLogger(logger),
		server.WithGenerator(components.Generator),
		server.WithVersion(version),
	)
	components.Engines.OnReload(srv.InvalidateCache)

	if cfg.Watch.Enabled {
		watchSvc := watcher.NewWatcher(
			watchedFiles(cfg),
			func() {
				// Failures are logged by the holder; the previous index keeps serving.
				_ = components.Engines.Reload(ctx)
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
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

// queryFlags are shared by search and ask.
type queryFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	topK       *int
	output     *string
}

func newQueryFlags(name, usage string) *queryFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	q := &queryFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path (used when --server is empty)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = load the index in-process)"),
		topK:       fs.Int("top-k", -1, "number of articles (-1 = configured default)"),
		output:     fs.String("output", "text", "output format: text, compact, or json"),
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cntsearch %s [flags] <query>\n\n%s\n\n", name, usage)
		fs.PrintDefaults()
	}
	return q
}

// parse returns the query, the search request and the output format, exiting on bad input.
func (q *queryFlags) parse(args []string) (*models.SearchQuery, cli.OutputFormat) {
	_ = q.fs.Parse(searchArgsReorder(args))
	query := &models.SearchQuery{Query: buildSearchQuery(q.fs.Args())}
	if *q.topK >= 0 {
		k := *q.topK
		query.TopK = &k
	}
	if err := query.Validate(); err != nil {
		q.fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*q.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return query, format
}

// localComponents builds the retrieval pipeline in-process for one-shot commands.
func localComponents(configPath string) (*bootstrap.Components, *zap.Logger) {
	cfg, _, logger := setup(configPath, false)
	components, err := bootstrap.Build(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func runSearch() {
	q := newQueryFlags("search", "Retrieves the most relevant CNT articles for a question or article reference.")
	query, format := q.parse(os.Args[2:])

	var response *models.SearchResponse
	if *q.serverURL != "" {
		var err error
		response, err = searchViaHTTP(*q.serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := localComponents(*q.configPath)
		defer logger.Sync()
		defer components.Close()

		start := time.Now()
		results, err := components.Engines.Engine().Search(context.Background(), query.Query, query.Limit())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = &models.SearchResponse{
			Query:     query.Query,
			Results:   results,
			Total:     len(results),
			QueryTime: time.Since(start).Milliseconds(),
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	q := newQueryFlags("ask", "Answers a question about the CNT from the retrieved articles using the configured language model.")
	query, format := q.parse(os.Args[2:])

	var answer *models.Answer
	if *q.serverURL != "" {
		var err error
		answer, err = askViaHTTP(*q.serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := localComponents(*q.configPath)
		defer logger.Sync()
		defer components.Close()

		ctx := context.Background()
		start := time.Now()
		results, err := components.Engines.Engine().Search(ctx, query.Query, query.Limit())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		answer, err = components.Generator.Generate(ctx, query.Query, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		answer.QueryTime = time.Since(start).Milliseconds()
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := postJSON(strings.TrimRight(serverURL, "/")+"/api/v1/search", query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func askViaHTTP(serverURL string, query *models.SearchQuery) (*models.Answer, error) {
	var answer models.Answer
	if err := postJSON(strings.TrimRight(serverURL, "/")+"/api/v1/ask", query, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func statusViaHTTP(serverURL string) (*server.StatusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var s server.StatusResponse
	if err := decodeResponse(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when --server is empty)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the index in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *server.StatusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := localComponents(*configPath)
		defer logger.Sync()
		defer components.Close()
		s := server.NewStatus(components.Engines.Engine(), components.Config, components.Generator)
		status = &s
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	withSQLite := fs.Bool("sqlite", false, "also write the metadata table to storage.database_path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: cntsearch index [flags] <chunks.json>")
		os.Exit(1)
	}
	chunksPath := fs.Arg(0)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	embedder, err := bootstrap.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	defer embedder.Close()

	out := indexer.Output{IndexPath: cfg.Storage.IndexPath, MetaPath: cfg.Storage.MetaPath}
	if *withSQLite || cfg.Storage.MetadataBackend == config.MetadataSQLite {
		out.DatabasePath = cfg.Storage.DatabasePath
	}
	encoder := embedding.NewPassageEncoder(embedder, cfg.Embedding.ModelName, cfg.Embedding.BatchSize)
	builder := indexer.NewBuilder(encoder, cfg.Embedding.ModelName, cfg.Vector.IndexType, cfg.Embedding.Dimensions,
		indexer.WithLogger(logger))

	report, err := builder.BuildFile(context.Background(), chunksPath, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d of %d articles (%d skipped) in %s\n",
		report.Indexed, report.TotalChunks, report.Skipped, report.Duration.Round(time.Millisecond))
	fmt.Printf("index:    %s\n", report.IndexPath)
	fmt.Printf("metadata: %s\n", report.MetaPath)
	if report.DatabasePath != "" {
		fmt.Printf("database: %s\n", report.DatabasePath)
	}
}

func printUsage() {
	fmt.Println(`cntsearch - Hybrid article retrieval for the Colombian national transit code

Usage:
  cntsearch server [flags]            Start the HTTP server
  cntsearch search [flags] <query>    Retrieve relevant articles
  cntsearch ask [flags] <question>    Answer a question from retrieved articles
  cntsearch index [flags] <chunks>    Build the vector index and metadata from a chunks JSON file
  cntsearch status [flags]            Show index and pipeline status
  cntsearch version                   Show version
  cntsearch help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/cntsearch/config.yaml)
  --debug            Enable debug logging

Search / Ask Flags:
  --config string    Config file path (used when --server is empty)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to load the index in-process.
  --top-k int        Number of articles (default from config)
  --output string    Output format: text, compact, or json (default: text)

Index Flags:
  --config string    Config file path
  --sqlite           Also write the metadata table to SQLite

Status Flags:
  --config string    Config file path (used when --server is empty)
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  cntsearch server
  cntsearch search "límite de velocidad en zona escolar"
  cntsearch search --top-k 3 artículo 131
  cntsearch search --output json "multa por no portar licencia"
  cntsearch ask "¿Qué pasa si conduzco sin SOAT?"
  cntsearch index --sqlite data/chunks.json
  cntsearch status --output json`)
}
