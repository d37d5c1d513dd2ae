// Package main is the osusume CLI entry point.
package main

import (
	"context"
	"errors"
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

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/cli"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/poster"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/watcher"
	"github.com/hyperjump/osusume/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/osusume/config.yaml"
	defaultServerURL  = "http://localhost:8501"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if neither exists the built-in defaults are used
// and the returned path is empty.
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
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
	case "recommend":
		runRecommend()
	case "titles":
		runTitles()
	case "convert":
		runConvert()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("osusume version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (catalog reloads, poster lookups, etc.)")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A failed first load still starts the server; the page shows the error state.
	engine := newEngine(cfg, logger)
	defer engine.Close()
	_ = engine.Reload(ctx)

	if cfg.Catalog.Watch {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			[]string{cfg.Catalog.CatalogPath, cfg.Catalog.MatrixPath},
			func(path string) {
				logger.Info("catalog file changed, reloading", zap.String("path", path))
				_ = engine.Reload(ctx)
			},
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	var posters server.PosterFetcher
	if client := newPosterClient(cfg, logger); client != nil {
		posters = client
	}

	srv := server.NewServer(engine, posters, &cfg.Server, logger)
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

func newEngine(cfg *config.Config, logger *zap.Logger) *recommend.Engine {
	return recommend.NewEngine(recommend.Paths{
		Catalog: cfg.Catalog.CatalogPath,
		Matrix:  cfg.Catalog.MatrixPath,
	}, cfg.Recommend.Limit, logger)
}

// newPosterClient returns nil when poster lookups are disabled.
func newPosterClient(cfg *config.Config, logger *zap.Logger) *poster.Client {
	if !cfg.Poster.EnabledOrDefault() {
		logger.Info("poster lookups disabled")
		return nil
	}
	if cfg.Poster.APIKey == "" {
		logger.Warn("poster api key not set; posters will use the error placeholder",
			zap.String("env", config.APIKeyEnv))
	}
	return poster.NewClient(cfg.Poster.PosterOptions(), poster.WithLogger(logger))
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so `osusume recommend Avatar -posters` would
// otherwise leave -posters unparsed.
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

// joinArgs joins positional args with spaces so multi-word titles work the same with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(value string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(value)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// openDirect loads config and the catalog for commands that run without a server.
func openDirect(configPath string) (*config.Config, *zap.Logger, *recommend.Engine) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	engine := newEngine(cfg, logger)
	if err := engine.Reload(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, engine
}

func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: osusume recommend [flags] <title>\n\n")
	fmt.Fprintf(fs.Output(), "Title is all remaining arguments joined by spaces and matched case-insensitively.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  osusume recommend Avatar
  osusume recommend "the dark knight rises" --posters
  osusume recommend --server "" --output json Inception   # load the catalog directly
`)
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the catalog directly)")
	posters := fs.Bool("posters", false, "include poster URLs")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	title := joinArgs(fs.Args())
	if title == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var (
		response *models.RecommendResponse
		notFound *models.ErrorResponse
		err      error
	)
	if *serverURL != "" {
		response, notFound, err = recommendViaHTTP(*serverURL, title, *posters)
	} else {
		response, notFound, err = recommendDirect(*configPath, title, *posters)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if notFound != nil {
		_ = cli.WriteNotFound(os.Stderr, notFound, format)
		os.Exit(2)
	}
	if err := cli.WriteRecommendations(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendDirect(configPath, title string, withPosters bool) (*models.RecommendResponse, *models.ErrorResponse, error) {
	cfg, logger, engine := openDirect(configPath)
	defer logger.Sync()
	defer engine.Close()

	start := time.Now()
	item, recs, err := engine.Recommend(title)
	if errors.Is(err, recommend.ErrNotFound) {
		return nil, &models.ErrorResponse{
			Error:       server.NotFoundMessage,
			Suggestions: engine.Suggest(context.Background(), title),
		}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if withPosters {
		if client := newPosterClient(cfg, logger); client != nil {
			ids := make([]int, len(recs))
			for i, r := range recs {
				ids[i] = r.Item.ID
			}
			for i, u := range client.PosterURLs(context.Background(), ids) {
				recs[i].PosterURL = u
			}
		}
	}
	return &models.RecommendResponse{
		Query:     title,
		Item:      item,
		Results:   recs,
		Total:     len(recs),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil, nil
}

// recommendViaHTTP returns either a response or, for an unknown title, the server's
// error body with suggestions.
func recommendViaHTTP(serverURL, title string, withPosters bool) (*models.RecommendResponse, *models.ErrorResponse, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("posters", strconv.FormatBool(withPosters))
	var response models.RecommendResponse
	status, body, err := getJSON(serverURL+"/api/v1/recommend?"+q.Encode(), &response)
	if err != nil {
		return nil, nil, err
	}
	if status == http.StatusNotFound {
		var notFound models.ErrorResponse
		if err := json.Unmarshal(body, &notFound); err != nil {
			return nil, nil, fmt.Errorf("decode error response: %w", err)
		}
		return nil, &notFound, nil
	}
	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	return &response, nil, nil
}

func runTitles() {
	fs := flag.NewFlagSet("titles", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the catalog directly)")
	limit := fs.Int("limit", 0, "maximum titles (0 = all, or 20 when searching)")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text, compact (one title per line), or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := joinArgs(fs.Args())
	format := parseFormat(*outputFormat)

	var (
		response *models.TitleListResponse
		err      error
	)
	if *serverURL != "" {
		response, err = titlesViaHTTP(*serverURL, query, *limit, *fuzzy)
	} else {
		response, err = titlesDirect(*configPath, query, *limit, *fuzzy)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Titles failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTitles(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func titlesDirect(configPath, query string, limit int, fuzzy bool) (*models.TitleListResponse, error) {
	_, logger, engine := openDirect(configPath)
	defer logger.Sync()
	defer engine.Close()

	var (
		entries []models.TitleEntry
		err     error
	)
	if query == "" {
		entries, err = engine.Titles()
		if err == nil && limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
	} else {
		if limit <= 0 {
			limit = 20
		}
		entries, err = engine.SearchTitles(context.Background(), query, limit, fuzzy)
	}
	if err != nil {
		return nil, err
	}
	return &models.TitleListResponse{Query: query, Fuzzy: fuzzy && query != "", Total: len(entries), Titles: entries}, nil
}

func titlesViaHTTP(serverURL, query string, limit int, fuzzy bool) (*models.TitleListResponse, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if fuzzy {
		q.Set("fuzzy", "true")
	}
	target := serverURL + "/api/v1/titles"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var response models.TitleListResponse
	status, body, err := getJSON(target, &response)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	return &response, nil
}

// convertOptions names the input and output files of a format conversion.
type convertOptions struct {
	CatalogIn  string
	MatrixIn   string
	CatalogOut string
	MatrixOut  string
}

func runConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	catalogIn := fs.String("catalog", "", "input catalog table (.json, .csv, .xlsx, .db)")
	matrixIn := fs.String("matrix", "", "input similarity matrix (.bin, or a text matrix)")
	catalogOut := fs.String("out-catalog", "", "output catalog table (.json or .db)")
	matrixOut := fs.String("out-matrix", "", "output binary matrix (.bin)")
	_ = fs.Parse(os.Args[2:])

	opts := convertOptions{CatalogIn: *catalogIn, MatrixIn: *matrixIn, CatalogOut: *catalogOut, MatrixOut: *matrixOut}
	n, err := convertFiles(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Convert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %d item(s)\n", n)
	if opts.CatalogOut != "" {
		fmt.Printf("catalog: %s\n", opts.CatalogOut)
	}
	if opts.MatrixOut != "" {
		fmt.Printf("matrix:  %s\n", opts.MatrixOut)
	}
}

// convertFiles reads a catalog table and a matrix, checks they agree, and writes them in
// the formats the server loads. It returns the number of items.
func convertFiles(ctx context.Context, opts convertOptions) (int, error) {
	if opts.CatalogIn == "" || opts.MatrixIn == "" {
		return 0, errors.New("--catalog and --matrix are required")
	}
	if opts.CatalogOut == "" && opts.MatrixOut == "" {
		return 0, errors.New("at least one of --out-catalog or --out-matrix is required")
	}
	items, err := catalog.ReadTable(ctx, opts.CatalogIn)
	if err != nil {
		return 0, err
	}
	rows, err := readMatrixRows(opts.MatrixIn)
	if err != nil {
		return 0, err
	}
	matrix, err := catalog.NewMatrix(rows)
	if err != nil {
		return 0, err
	}
	if _, err := catalog.New(items, matrix); err != nil {
		return 0, err
	}
	if opts.CatalogOut != "" {
		if err := catalog.WriteTable(ctx, opts.CatalogOut, items); err != nil {
			return 0, err
		}
	}
	if opts.MatrixOut != "" {
		if err := catalog.WriteMatrix(opts.MatrixOut, rows); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

// readMatrixRows reads a binary matrix (.bin) or a text matrix (any other extension).
func readMatrixRows(path string) ([][]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		m, err := catalog.ReadMatrix(path)
		if err != nil {
			return nil, err
		}
		rows := make([][]float64, m.Dim())
		for i := range rows {
			rows[i] = append([]float64(nil), m.Row(i)...)
		}
		return rows, nil
	}
	return catalog.ReadMatrixText(path)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// writeDefaultConfig saves the built-in defaults to path so they can be edited.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return config.Save(path, config.Default())
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	recommend.Stats
	PostersEnabled bool                `json:"posters_enabled"`
	Files          []storage.FileUsage `json:"files,omitempty"`
	DiskUsageBytes int64               `json:"disk_usage_bytes"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var (
		status *statusResponse
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger, engine := openDirect(*configPath)
		defer logger.Sync()
		defer engine.Close()
		status = &statusResponse{Stats: engine.Stats(), PostersEnabled: cfg.Poster.EnabledOrDefault()}
		if files, total, err := storage.DiskUsage(cfg.Catalog.CatalogPath, cfg.Catalog.MatrixPath); err == nil {
			status.Files = files
			status.DiskUsageBytes = total
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
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "loaded:           %t\n", status.Loaded)
	fmt.Fprintf(w, "items:            %d   # catalog entries\n", status.Items)
	fmt.Fprintf(w, "matrix_dim:       %d   # similarity matrix rows/columns\n", status.MatrixDim)
	fmt.Fprintf(w, "limit:            %d   # recommendations per query\n", status.Limit)
	if !status.LoadedAt.IsZero() {
		fmt.Fprintf(w, "loaded_at:        %s\n", status.LoadedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "posters_enabled:  %t\n", status.PostersEnabled)
	fmt.Fprintf(w, "disk_usage_bytes: %d   # catalog + matrix on disk\n", status.DiskUsageBytes)
	if status.LastError != "" {
		fmt.Fprintf(w, "last_error:       %s\n", status.LastError)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# files")
	fmt.Fprintf(w, "catalog_path:     %s\n", status.CatalogPath)
	fmt.Fprintf(w, "matrix_path:      %s\n", status.MatrixPath)
	for _, f := range status.Files {
		if !f.Exists {
			fmt.Fprintf(w, "  %s (missing)\n", f.Path)
			continue
		}
		fmt.Fprintf(w, "  %s (%d bytes)\n", f.Path, f.Bytes)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	var s statusResponse
	status, body, err := getJSON(serverURL+"/api/v1/status", &s)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}
	return &s, nil
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// getJSON fetches target and decodes a 200 response into out. Other statuses return the
// raw body for the caller to interpret.
func getJSON(target string, out interface{}) (int, []byte, error) {
	resp, err := httpClient.Get(target)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}

func printUsage() {
	fmt.Println(`osusume - Movie recommendations from a precomputed similarity matrix

Usage:
  osusume server [flags]              Start the web page and HTTP API
  osusume recommend [flags] <title>   Show the 5 most similar movies
  osusume titles [flags] [query]      List catalog titles, or search them
  osusume convert [flags]             Convert catalog and matrix files to the served formats
  osusume status [flags]              Show catalog status
  osusume init [flags]                Write a config file with the defaults
  osusume version                     Show version
  osusume help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/osusume/config.yaml, or ./config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8501). Use empty (--server "") to load the catalog directly.
  --posters          Include poster URLs (default: false)
  --output string    Output format: text, compact, or json (default: text)

Titles Flags:
  --config, --server, --output as above
  --limit int        Maximum titles (default: all, or 20 when searching)
  --fuzzy            Typo-tolerant title search

Convert Flags:
  --catalog string       Input catalog table (.json, .csv, .xlsx, .db)
  --matrix string        Input matrix (.bin, or whitespace/comma separated text)
  --out-catalog string   Output catalog table (.json or .db)
  --out-matrix string    Output binary matrix

Status Flags:
  --config, --server as above
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    File to write (default: config.yaml)
  --force            Overwrite an existing file

Environment:
  TMDB_API_KEY       API key for poster lookups (overrides poster.api_key)

Examples:
  osusume server
  osusume recommend Avatar
  osusume recommend --posters --output json "The Dark Knight"
  osusume titles --fuzzy avatr
  osusume convert --catalog movies.csv --matrix similarity.txt --out-catalog movie_list.json --out-matrix similarity.bin
  osusume status --output json
  osusume init --config ~/.config/osusume/config.yaml`)
}
