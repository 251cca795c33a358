// Package web provides the HTTP and WebSocket operator surface for the
// inkwell resource-management runtime.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/inkwell-ai/inkwell/internal/core"
	"github.com/inkwell-ai/inkwell/internal/docstore"
	"github.com/inkwell-ai/inkwell/internal/provider"
)

// Config holds configuration for the web server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// RateLimit is the sustained request rate allowed per server.
	RateLimit rate.Limit

	// RateBurst is the burst size allowed on top of RateLimit.
	RateBurst int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":7748",
		RateLimit: rate.Limit(50),
		RateBurst: 100,
	}
}

// Server is the HTTP server exposing the runtime to local tooling.
type Server struct {
	rt    *core.Runtime
	store *docstore.Store
	gen   provider.Generator

	limiter *rate.Limiter
	log     *slog.Logger
	mux     *http.ServeMux
	srv     *http.Server
	addr    string
}

// NewServer creates a new web server. The document store and generator
// are optional; endpoints needing an absent one answer 503.
func NewServer(cfg *Config, rt *core.Runtime, store *docstore.Store,
	gen provider.Generator, log *slog.Logger) *Server {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		rt:      rt,
		store:   store,
		gen:     gen,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		log:     log.With("component", "web"),
		mux:     http.NewServeMux(),
		addr:    cfg.Addr,
	}

	s.registerAPIV1Routes()

	// WebSocket stream consumer.
	s.mux.HandleFunc("/ws/streams/", s.handleStreamSocket)

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting web server", "addr", s.addr)

	if err := s.srv.ListenAndServe(); err != nil &&
		err != http.ErrServerClosed {

		return fmt.Errorf("web server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}

	return nil
}
