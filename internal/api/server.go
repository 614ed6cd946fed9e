package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/receiptwise/receiptmatch-backend/internal/api/handlers"
	"github.com/receiptwise/receiptmatch-backend/internal/api/middleware"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config       Config
	router       chi.Router
	httpServer   *http.Server
	logger       *slog.Logger
	repo         storage.Repository
	matchService *service.MatchService
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, matchService *service.MatchService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		router:       chi.NewRouter(),
		logger:       logger,
		repo:         repo,
		matchService: matchService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.matchService)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Candidate discovery
		receiptsHandler := handlers.NewReceiptsHandler(s.matchService)
		r.Get("/receipts/{id}/candidates", receiptsHandler.Candidates)

		// Match lifecycle
		matchesHandler := handlers.NewMatchesHandler(s.matchService)
		r.Post("/matches", matchesHandler.Create)
		r.Get("/matches", matchesHandler.List)
		r.Post("/matches/approve", matchesHandler.BatchApprove)
		r.Post("/matches/{id}/confirm", matchesHandler.Confirm)
		r.Post("/matches/{id}/reject", matchesHandler.Reject)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.matchService)
		r.Get("/stats", statsHandler.Get)

		// Auto-match jobs
		autoMatchHandler := handlers.NewAutoMatchHandler(s.matchService)
		r.Post("/automatch", autoMatchHandler.Start)
		r.Get("/automatch", autoMatchHandler.ListAll)
		r.Get("/automatch/active", autoMatchHandler.ListActive)
		r.Get("/automatch/{jobId}", autoMatchHandler.Get)
		r.Delete("/automatch/{jobId}", autoMatchHandler.Cancel)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
