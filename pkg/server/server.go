// Package server exposes similarity search over HTTP.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visto-dev/visto/pkg/auth"
	"github.com/visto-dev/visto/pkg/encoder"
	"github.com/visto-dev/visto/pkg/observability"
	"github.com/visto-dev/visto/pkg/search"
	"github.com/visto-dev/visto/pkg/storage"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
	Logger          *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		MetricsEnabled:  true,
		MetricsPath:     "/metrics",
		Logger:          slog.Default(),
	}
}

// Server wraps an http.Server with the search API routes and manages
// graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     Config
	logger     *slog.Logger

	store   storage.EmbeddingStore
	engine  *search.Engine
	encoder encoder.ImageEncoder
	topK    int
}

// New creates a server over the given store, search engine and encoder.
// The auth chain and limiter are applied to all routes except the bypass
// endpoints (health and metrics).
func New(cfg Config, store storage.EmbeddingStore, eng *search.Engine, enc encoder.ImageEncoder,
	chain *auth.Chain, limiter auth.RateLimiter, topK int) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  cfg.Logger,
		store:   store,
		engine:  eng,
		encoder: enc,
		topK:    topK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if cfg.MetricsEnabled {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	var handler http.Handler = mux
	handler = auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints)(handler)
	handler = observability.MetricsMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the server's root handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve starts the server and blocks until ctx is cancelled or the
// listener fails. On cancellation it shuts down gracefully, waiting for
// in-flight requests within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
