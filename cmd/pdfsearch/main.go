// Package main is the pdfsearch CLI entry point.
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

	"github.com/hyperjump/pdfsearch/internal/cli"
	"github.com/hyperjump/pdfsearch/internal/config"
	"github.com/hyperjump/pdfsearch/internal/ingest"
	"github.com/hyperjump/pdfsearch/internal/models"
	"github.com/hyperjump/pdfsearch/internal/server"
	"github.com/hyperjump/pdfsearch/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pdfsearch/config.yaml"
	defaultServerURL  = "http://localhost:5000"
	shutdownTimeout   = 10 * time.Second
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file falls back to built-in defaults.
// .env and environment overrides are applied last, then the result is validated.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.LoadEnvFile(""); err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, err := os.Stat(fallback); err == nil {
			cfg, err := config.Load(fallback)
			return cfg, fallback, err
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	return cfg, path, err
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
	case "worker":
		runWorker()
	case "upload":
		runUpload()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("pdfsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func mustLoad(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
		zap.String("engine", cfg.Engine.Type),
		zap.String("cache", cfg.Cache.Type),
		zap.String("indexing_mode", cfg.Indexing.Mode),
	)
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := mustLoad(*configPath, *debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if components.Inbox != nil {
		if err := components.Inbox.Start(ctx); err != nil {
			logger.Fatal("Failed to start inbox", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Ingest,
		components.Coordinator,
		components.Dispatcher,
		components.Files,
		components.Storage,
		components.StatusInfo(cfg),
		&cfg.Server,
		logger,
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
}

func runWorker() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := mustLoad(*configPath, *debug)
	defer logger.Sync()

	srv, cleanup, err := initializeWorker(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize worker", zap.Error(err))
	}
	defer cleanup()

	logger.Info("indexing worker running",
		zap.String("redis", cfg.Redis.Addr),
		zap.String("queue", cfg.Indexing.AsynqQueue),
		zap.Int("concurrency", cfg.Indexing.Workers),
	)
	// Run blocks until SIGINT or SIGTERM, waiting for in-flight tasks.
	if err := srv.Run(); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	title := fs.String("title", "", "document title")
	description := fs.String("description", "", "document description")
	category := fs.String("category", "", "document category")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: pdfsearch upload [flags] <file.pdf>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)

	res, err := cli.NewClient(*serverURL, nil).Upload(context.Background(), fs.Arg(0), ingest.Metadata{
		Title:       *title,
		Description: *description,
		Category:    *category,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteUploadResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func reorderArgs(args []string) []string {
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

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return format
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL (empty = query the configured engine directly)`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: pdfsearch search [flags] <query>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)

	var response *models.SearchResponse
	var err error
	if *serverURL != "" {
		response, err = cli.NewClient(*serverURL, nil).Search(context.Background(), query)
	} else {
		response, err = searchDirect(*configPath, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchDirect answers query without a running server. An embedded bleve index can only
// be opened by one process, so this fails while the server holds it.
func searchDirect(configPath, query string) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	ctx := context.Background()
	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	store := openCache(ctx, cfg, logger)
	defer store.Close()
	return newCoordinator(cfg, eng, store, logger).Search(ctx, query)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	status, err := cli.NewClient(*serverURL, nil).Status(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pdfsearch - PDF upload and full-text search service

Usage:
  pdfsearch server [flags]              Start the HTTP server
  pdfsearch worker [flags]              Run the background indexing worker (asynq queue)
  pdfsearch upload [flags] <file.pdf>   Upload a PDF to a running server
  pdfsearch search [flags] <query>      Search documents
  pdfsearch status [flags]              Show server status
  pdfsearch version                     Show version
  pdfsearch help                        Show this help

Server / Worker Flags:
  --config string    Config file path (default: /usr/local/etc/pdfsearch/config.yaml)
  --debug            Enable debug logging

Upload Flags:
  --server string       Server URL (default: http://localhost:5000)
  --title string        Document title (default: "Untitled Document")
  --description string  Document description
  --category string     Document category (default: "General")
  --output string       Output format: text or json (default: text)

Search Flags:
  --server string    Server URL (default: http://localhost:5000). Use --server "" to query
                     the configured engine and cache directly.
  --config string    Config file path (direct mode only)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:5000)
  --output string    Output format: text or json (default: text)

Environment:
  .env in the working directory is loaded first. PDFSEARCH_* variables, OPENSEARCH_HOST,
  OPENSEARCH_PORT, OPENSEARCH_USER, OPENSEARCH_PASSWORD, REDIS_ADDR and REDIS_PASSWORD
  override the config file.

Examples:
  pdfsearch server
  pdfsearch upload --title "Q1 Report" --category Finance q1.pdf
  pdfsearch search quarterly revenue
  pdfsearch search --output json "quarterly revenue"
  pdfsearch search --server "" revenue
  pdfsearch status --output json`)
}
