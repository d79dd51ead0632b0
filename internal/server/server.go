// Package server provides the HTTP API for cntsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/compress"
	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/generator"
	"github.com/hyperjump/cntsearch/internal/search"
)

// EngineSource returns the engine serving the current corpus. It may change between
// calls when the index is reloaded.
type EngineSource interface {
	Engine() *search.Engine
}

// Server is the HTTP server for the cntsearch API.
type Server struct {
	engines    EngineSource
	generator  *generator.Generator
	compressor *compress.Compressor
	config     *config.Config
	cache      *resultCache
	logger     *zap.Logger
	version    string
	started    time.Time
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGenerator enables POST /api/v1/ask.
func WithGenerator(g *generator.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithVersion sets the version reported by /api/v1/status.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server over engines. cfg must have defaults applied.
func NewServer(engines EngineSource, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		engines: engines,
		config:  cfg,
		cache:   newResultCache(cfg.Server.CacheTTL, cfg.Server.CacheCleanup),
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.compressor = compress.New(compress.WithLogger(s.logger))
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.Server.RequestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/compress", s.handleCompress)
		r.Post("/ask", s.handleAsk)
		r.Get("/articles/{number}", s.handleGetArticle)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// InvalidateCache drops every cached search response. Call it after the corpus is reloaded.
func (s *Server) InvalidateCache() {
	s.cache.flush()
	s.logger.Debug("Search cache flushed")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("HTTP request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}
