// Package main is the lmsearch CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hyperjump/lmsearch/internal/cli"
	"github.com/hyperjump/lmsearch/internal/config"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/indexer"
	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/search"
	"github.com/hyperjump/lmsearch/internal/server"
	"github.com/hyperjump/lmsearch/internal/session"
	"github.com/hyperjump/lmsearch/internal/sources"
	"github.com/hyperjump/lmsearch/internal/watcher"
	"github.com/hyperjump/lmsearch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/lmsearch/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

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
	case "server":
		runServer()
	case "suggest":
		runSuggest()
	case "index":
		runIndex()
	case "layers":
		runLayers()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("lmsearch version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (requests, layer imports, sessions)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
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

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	idx := components.Indexer
	exts := cfg.Layers.Extensions
	watchSvc := watcher.New(
		cfg.Layers.Directories,
		exts,
		cfg.Layers.RecursiveOrDefault(),
		func(path string) {
			if _, err := idx.ImportFile(context.Background(), path, exts); err != nil {
				logger.Warn("watch import failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := idx.RemoveFile(context.Background(), path); err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncAll()

	deps := session.Deps{
		Config:  cfg,
		Sources: components.Sources,
		Layers:  components.Registry,
		Objects: components.Detail,
		Coords:  components.Detail,
		Logger:  logger,
	}
	mgr := session.NewManager(deps,
		session.WithIdleTimeout(cfg.Sessions.IdleTimeout),
		session.WithMaxSessions(cfg.Sessions.MaxSessions),
		session.WithLogger(logger))
	go mgr.Run(ctx)
	defer mgr.CloseAll()

	srv := server.NewServer(cfg, mgr, components.Suggester, components.Registry,
		server.WithLogger(logger),
		server.WithKeywordIndex(components.KeywordIndex),
		server.WithImporter(idx),
		server.WithWatcher(watchSvc),
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
}

// printSuggestUsage prints suggest subcommand usage.
func printSuggestUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: lmsearch suggest [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Suggestions are grouped by type and taken round-robin, so no single type fills the list.
Without a running server (--server ""), the configured sources are queried directly.

Examples:
  lmsearch suggest storgatan 1
  lmsearch suggest --limit 20 "stora essingen"
  lmsearch suggest --output json storby
`)
}

// buildQuery joins all positional args with spaces so multi-word queries work the
// same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query to the
// front of the slice so that flag.Parse() sees them.
func argsReorder(args []string) []string {
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

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = query the configured sources directly)")
	limit := fs.Int("limit", 0, "number of suggestions (0 = configured limit)")
	outputFormat := fs.String("output", "text", "output format: text, compact (one suggestion per line), or json")
	fs.Usage = func() { printSuggestUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		printSuggestUsage(fs)
		os.Exit(1)
	}
	format := cli.ParseFormat(*outputFormat)

	typeAttr := "layer"
	if cfg, _, err := loadConfig(*configPath); err == nil && cfg.Search.LayerNameAttribute != "" {
		typeAttr = cfg.Search.LayerNameAttribute
	}

	if *serverURL != "" {
		// The server holds the Bleve and SQLite locks while running.
		list, err := suggestViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSuggestions(os.Stdout, query, list, typeAttr, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
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

	list := components.Suggester.Suggest(context.Background(), query, *limit)
	if err := cli.WriteSuggestions(os.Stdout, query, list, typeAttr, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func suggestViaHTTP(serverURL, query string, limit int) ([]*models.Suggestion, error) {
	v := url.Values{"q": {query}}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Suggestions []*models.Suggestion `json:"suggestions"`
	}
	if err := getJSON(serverURL+"/api/v1/suggest?"+v.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

func getJSON(rawURL string, v interface{}) error {
	resp, err := http.Get(rawURL)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Layers         int64                  `json:"layers"`
	Features       int64                  `json:"features"`
	Sessions       int                    `json:"sessions"`
	IndexedNames   *uint64                `json:"indexed_names,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	UptimeSeconds  int64                  `json:"uptime_seconds,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		reg, err := layers.NewSQLiteRegistry(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open layer database: %v\n", err)
			os.Exit(1)
		}
		defer reg.Close()
		ctx := context.Background()
		if status.Layers, err = reg.CountLayers(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count layers failed: %v\n", err)
			os.Exit(1)
		}
		if status.Features, err = reg.CountFeatures(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count features failed: %v\n", err)
			os.Exit(1)
		}
		if n, err := layers.StorageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
			status.DiskUsageBytes = &n
		}
		status.Config = map[string]interface{}{
			"database_path":    cfg.Storage.DatabasePath,
			"bleve_index_path": cfg.Storage.BleveIndexPath,
			"show_feature":     cfg.Display.ShowFeature,
			"estate_lookup":    cfg.Estate.Lookup,
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("layers:            %d   # registered layers\n", status.Layers)
		fmt.Printf("features:          %d   # features across all layers\n", status.Features)
		if *serverURL != "" {
			fmt.Printf("sessions:          %d   # open viewer sessions\n", status.Sessions)
			fmt.Printf("uptime_seconds:    %d\n", status.UptimeSeconds)
		}
		if status.IndexedNames != nil {
			fmt.Printf("indexed_names:     %d   # full-text index entries\n", *status.IndexedNames)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d   # database + index on disk\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, k := range []string{"database_path", "bleve_index_path", "show_feature", "limit", "min_length", "estate_lookup"} {
				if v, ok := status.Config[k]; ok {
					fmt.Printf("%-18s %v\n", k+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: lmsearch index [flags] <layer-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
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

	reg, kw, err := openStores(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer reg.Close()
	defer kw.Close()
	idx := indexer.NewIndexer(reg, kw,
		indexer.WithLogger(logger),
		indexer.WithNameProperty(cfg.Layers.NameProperty))

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := idx.ImportDirectory(ctx, path, cfg.Layers.Extensions)
		if err != nil {
			fmt.Printf("Importing directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d layer(s) from %s\n", n, path)
		return
	}
	// Single file: no extension filter
	imported, err := idx.ImportFile(ctx, path, nil)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	if !imported {
		fmt.Printf("Layer unchanged: %s\n", indexer.LayerName(path))
		return
	}
	fmt.Printf("Layer imported: %s\n", indexer.LayerName(path))
}

func runLayers() {
	sub := "list"
	args := os.Args[2:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("layers", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(args)

	switch sub {
	case "list":
		var out struct {
			Layers []*layers.Layer `json:"layers"`
		}
		if err := getJSON(*serverURL+"/api/v1/layers", &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteLayers(os.Stdout, out.Layers, cli.ParseFormat(*outputFormat)); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: lmsearch layers delete <name>")
			os.Exit(1)
		}
		name := fs.Arg(0)
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/layers/"+url.PathEscape(name), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Layer deleted: %s\n", name)
	case "dirs":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/api/v1/layers/directories", &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown layers subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Printf("Config already exists: %s (use --force to overwrite)\n", path)
		os.Exit(1)
	}
	if err := writeDefaultConfig(path); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written: %s\n", path)
}

// writeDefaultConfig saves a config holding every default to path.
func writeDefaultConfig(path string) error {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return config.Save(path, cfg)
}

// Components holds initialized services.
type Components struct {
	Registry     layers.Registry
	KeywordIndex keyword.FeatureIndex
	Indexer      *indexer.Indexer
	Detail       *fetch.DetailClient
	Sources      []sources.Source
	Suggester    *search.Aggregator
}

func (c *Components) Close() {
	if c.Suggester != nil {
		c.Suggester.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func openStores(cfg *config.Config) (*layers.SQLiteRegistry, *keyword.BleveIndex, error) {
	reg, err := layers.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize layer registry: %w", err)
	}
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = reg.Close()
		return nil, nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	return reg, kw, nil
}

// discardList is the list widget of the stateless suggester; Suggest never publishes.
type discardList struct{}

func (discardList) SetList([]*models.Suggestion) {}
func (discardList) Evaluate()                    {}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	reg, kw, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	c := &Components{Registry: reg, KeywordIndex: kw}

	c.Indexer = indexer.NewIndexer(reg, kw,
		indexer.WithLogger(logger),
		indexer.WithNameProperty(cfg.Layers.NameProperty))

	client := fetch.NewClient(cfg.Sources.Timeout,
		fetch.WithRateLimit(cfg.Sources.RateLimit, cfg.Sources.RateBurst),
		fetch.WithLogger(logger))
	c.Detail = fetch.NewDetailClient(client, cfg.Detail.ObjectURL, cfg.Detail.CoordinateURL)

	var es *elasticsearch.Client
	if len(cfg.Sources.Elasticsearch.Addresses) > 0 {
		es, err = elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Sources.Elasticsearch.Addresses})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize elasticsearch client: %w", err)
		}
	}
	c.Sources = sources.FromConfig(cfg, client, kw, es)
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name()
	}
	logger.Info("suggestion sources configured", zap.Strings("sources", names))

	c.Suggester = search.NewAggregator(search.Options{
		QueryAttr:    cfg.Search.QueryAttribute,
		TypeAttr:     cfg.Search.LayerNameAttribute,
		Limit:        cfg.Search.Limit,
		MinLength:    cfg.Search.MinLength,
		NoMatchLabel: cfg.Search.NoMatchLabel,
		Timeout:      cfg.Sources.Timeout,
	}, c.Sources, search.NewIndex(cfg.Search.QueryAttribute), discardList{},
		search.WithLogger(logger))
	return c, nil
}

func printUsage() {
	fmt.Println(`lmsearch - Map search and estate lookup service

Usage:
  lmsearch server [flags]            Start the HTTP server
  lmsearch suggest [flags] <query>   Show ranked suggestions for a query
  lmsearch index [flags] <path>      Import a layer file or directory
  lmsearch layers [list|delete|dirs] Manage registered layers
  lmsearch status [flags]            Show layer/index/session status
  lmsearch init [--force] [path]     Write a config file holding the defaults
  lmsearch version                   Show version
  lmsearch help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/lmsearch/config.yaml)
  --debug            Enable debug logging

Suggest Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to query sources directly.
  --limit int        Number of suggestions (default: configured limit)
  --output string    Output format: text, compact or json (default: text)

Index Flags:
  --config string    Config file path

Layers Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text, compact or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  lmsearch server
  lmsearch suggest storgatan
  lmsearch suggest --output json "storby 1:2"
  lmsearch index ./layers/badplatser.geojson
  lmsearch layers
  lmsearch layers delete badplatser
  lmsearch status --output json`)
}
