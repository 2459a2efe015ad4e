package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-telco/shrike/internal/domain"
	"github.com/opensource-telco/shrike/internal/pipeline"
	"github.com/opensource-telco/shrike/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, scorer *pipeline.Scorer, store domain.ResultStore, cache domain.Cache, engine *rules.Engine, version string) *Server {
	handler := NewHandler(scorer, store, cache, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Batch scoring
	router.Post("/score", handler.Score)
	router.Post("/score/async", handler.ScoreAsync)

	// Result retrieval
	router.Get("/results", handler.ListResults)
	router.Get("/results/{id}", handler.GetResult)
	router.Delete("/results/{id}", handler.DeleteResult)
	router.Get("/results/{id}/flags", handler.GetResultFlags)

	// Review rule management
	router.Get("/review-rules", handler.ListReviewRules)
	router.Post("/review-rules", handler.CreateReviewRule)
	router.Delete("/review-rules/{id}", handler.DeleteReviewRule)
	router.Post("/review-rules/reload", handler.ReloadReviewRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
