// Command visto indexes image embeddings and finds visually similar images.
//
// Modes:
//
//	visto -mode ingest -config config.yaml
//	    Walk the configured image directory and load embeddings into the store.
//
//	visto -mode search -query path/to/image.jpg
//	    Ingest (if needed), rank the corpus against the query image and
//	    export the results.
//
//	visto -mode interactive
//	    Read query image paths from stdin in a loop, reusing the encoder
//	    and store across queries.
//
//	visto -mode serve
//	    Expose search over HTTP with health and metrics endpoints.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/visto-dev/visto/pkg/auth"
	"github.com/visto-dev/visto/pkg/auth/apikey"
	"github.com/visto-dev/visto/pkg/auth/jwt"
	"github.com/visto-dev/visto/pkg/auth/noop"
	"github.com/visto-dev/visto/pkg/config"
	"github.com/visto-dev/visto/pkg/encoder"
	"github.com/visto-dev/visto/pkg/export"
	"github.com/visto-dev/visto/pkg/ingest"
	"github.com/visto-dev/visto/pkg/search"
	"github.com/visto-dev/visto/pkg/server"
	"github.com/visto-dev/visto/pkg/storage"
	"github.com/visto-dev/visto/pkg/storage/memory"
	"github.com/visto-dev/visto/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("visto failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to config file")
		mode       = flag.String("mode", "search", "run mode: ingest, search, interactive, serve")
		query      = flag.String("query", "", "query image path (search mode)")
		topK       = flag.Int("top-k", 0, "override result count")
		noCleanup  = flag.Bool("no-cleanup", false, "keep the corpus even when storage.ephemeral is set")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *topK > 0 {
		cfg.Search.TopK = *topK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	// Ephemeral corpora are dropped on the way out, signal or not. The
	// store handle is in scope here, so cleanup needs no shared state.
	if cfg.Storage.Ephemeral && !*noCleanup {
		defer func() {
			logger.Info("dropping ephemeral corpus")
			if err := store.Reset(context.Background()); err != nil {
				logger.Error("corpus cleanup failed", "error", err)
			}
		}()
	}

	enc := encoder.NewHTTPEncoder(cfg.Encoder.URL, cfg.Encoder.Model, cfg.Encoder.APIKey)
	eng := search.New(store)

	switch *mode {
	case "ingest":
		return runIngest(ctx, cfg, store, enc, logger)
	case "search":
		if *query == "" {
			return fmt.Errorf("-query is required in search mode")
		}
		return runSearch(ctx, cfg, store, enc, eng, *query, logger)
	case "interactive":
		return runInteractive(ctx, cfg, store, enc, eng, logger)
	case "serve":
		return runServe(ctx, cfg, store, enc, eng, logger)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.EmbeddingStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:                 cfg.Storage.Postgres.DSN,
			MaxConns:            cfg.Storage.Postgres.MaxConns,
			MinConns:            cfg.Storage.Postgres.MinConns,
			EnsureSchemaOnStart: cfg.Storage.Postgres.EnsureSchemaOnStart,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func runIngest(ctx context.Context, cfg *config.Config, store storage.EmbeddingStore,
	enc encoder.ImageEncoder, logger *slog.Logger) error {
	if cfg.Ingest.ImageDir == "" {
		return fmt.Errorf("ingest.image_dir is required in ingest mode")
	}

	ing := ingest.New(store, enc, logger)
	stats, err := ing.Run(ctx, cfg.Ingest.ImageDir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", cfg.Ingest.ImageDir, err)
	}

	fmt.Printf("scanned %d files: %d inserted, %d duplicates, %d failed\n",
		stats.Scanned, stats.Inserted, stats.Duplicates, stats.Failed)
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, store storage.EmbeddingStore,
	enc encoder.ImageEncoder, eng *search.Engine, query string, logger *slog.Logger) error {
	// Make sure the corpus is loaded when an image dir is configured.
	if cfg.Ingest.ImageDir != "" {
		ing := ingest.New(store, enc, logger)
		if _, err := ing.Run(ctx, cfg.Ingest.ImageDir); err != nil {
			return fmt.Errorf("ingesting %s: %w", cfg.Ingest.ImageDir, err)
		}
	}

	results, err := searchImage(ctx, enc, eng, query, cfg.Search.TopK)
	if err != nil {
		return err
	}

	printResults(results)

	writer := export.NewWriter(cfg.Export.OutputDir)
	runDir, err := writer.Save(export.QueryInfo{
		QueryImage: query,
		TopK:       cfg.Search.TopK,
		Encoder:    cfg.Encoder.Model,
	}, results)
	if err != nil {
		return fmt.Errorf("exporting results: %w", err)
	}

	fmt.Printf("results saved to %s\n", runDir)
	return nil
}

func runInteractive(ctx context.Context, cfg *config.Config, store storage.EmbeddingStore,
	enc encoder.ImageEncoder, eng *search.Engine, logger *slog.Logger) error {
	if cfg.Ingest.ImageDir != "" {
		ing := ingest.New(store, enc, logger)
		if _, err := ing.Run(ctx, cfg.Ingest.ImageDir); err != nil {
			return fmt.Errorf("ingesting %s: %w", cfg.Ingest.ImageDir, err)
		}
	}

	writer := export.NewWriter(cfg.Export.OutputDir)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("query image path (or \"quit\"): ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit", "q":
			return scanner.Err()
		}

		results, err := searchImage(ctx, enc, eng, line, cfg.Search.TopK)
		if err != nil {
			// One bad query should not end the session.
			fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
			continue
		}

		printResults(results)

		runDir, err := writer.Save(export.QueryInfo{
			QueryImage: line,
			TopK:       cfg.Search.TopK,
			Encoder:    cfg.Encoder.Model,
		}, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			continue
		}
		fmt.Printf("results saved to %s\n", runDir)
	}

	return scanner.Err()
}

func runServe(ctx context.Context, cfg *config.Config, store storage.EmbeddingStore,
	enc encoder.ImageEncoder, eng *search.Engine, logger *slog.Logger) error {
	chain, limiter, err := buildAuth(cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = ":" + strconv.Itoa(cfg.Server.Port)
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.MetricsEnabled = cfg.Observability.Metrics.Enabled
	srvCfg.MetricsPath = cfg.Observability.Metrics.Path
	srvCfg.Logger = logger

	srv := server.New(srvCfg, store, eng, enc, chain, limiter, cfg.Search.TopK)
	return srv.Serve(ctx)
}

func buildAuth(cfg *config.Config) (*auth.Chain, auth.RateLimiter, error) {
	chain := &auth.Chain{DefaultDecision: auth.Grant}

	switch cfg.Auth.Type {
	case "none":
		// Everything passes through as anonymous.
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject},
			})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
		chain.DefaultDecision = auth.Deny
	case "jwt":
		chain.Authenticators = []auth.Authenticator{jwt.New(jwt.Config{
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
		})}
		chain.DefaultDecision = auth.Deny
	default:
		return nil, nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimitRPM > 0 {
		limiter = auth.NewInProcessLimiter(cfg.Auth.RateLimitRPM)
	}

	return chain, limiter, nil
}

func searchImage(ctx context.Context, enc encoder.ImageEncoder, eng *search.Engine,
	path string, topK int) ([]search.Result, error) {
	vec, err := enc.EncodeImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", path, err)
	}
	results, err := eng.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return results, nil
}

func printResults(results []search.Result) {
	if len(results) == 0 {
		fmt.Println("no matches")
		return
	}
	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s\n", i+1, r.Similarity, r.Record.FilePath)
	}
}
