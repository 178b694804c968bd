// Package http exposes the ETL pipeline over a JSON API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker matches the HealthCheck method on driven adapters
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	scanService     driving.ScanService
	approvalService driving.ApprovalService
	catalogService  driving.CatalogService

	// Infrastructure health
	db       Pinger        // PostgreSQL
	index    HealthChecker // vector index
	embedder HealthChecker // embedding service
}

// Config holds server configuration
type Config struct {
	Host      string
	Port      int
	Version   string
	JWTSecret string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	scanService driving.ScanService,
	approvalService driving.ApprovalService,
	catalogService driving.CatalogService,
	db Pinger,
	index HealthChecker,
	embedder HealthChecker,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		logger:          logger.With(slog.String("component", "http_server")),
		scanService:     scanService,
		approvalService: approvalService,
		catalogService:  catalogService,
		db:              db,
		index:           index,
		embedder:        embedder,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.JWTSecret)
	return s
}

// setupRoutes configures all HTTP routes. Everything under /api/v1/etl is
// admin-only; health endpoints are public.
func (s *Server) setupRoutes(jwtSecret string) {
	auth := NewAuthMiddleware(jwtSecret)
	admin := func(h http.HandlerFunc) http.Handler {
		return auth.Authenticate(auth.RequireAdmin(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Scan lifecycle
	s.router.Handle("POST /api/v1/etl/scan", admin(s.handleTriggerScan))
	s.router.Handle("GET /api/v1/etl/scan/status", admin(s.handleScanStatus))
	s.router.Handle("POST /api/v1/etl/reset-failed", admin(s.handleResetFailed))

	// Approvals
	s.router.Handle("GET /api/v1/etl/approvals", admin(s.handleListApprovals))
	s.router.Handle("POST /api/v1/etl/approvals/{id}/approve", admin(s.handleApprove))
	s.router.Handle("POST /api/v1/etl/approvals/{id}/reject", admin(s.handleReject))

	// Catalog
	s.router.Handle("GET /api/v1/etl/documents", admin(s.handleListDocuments))
	s.router.Handle("GET /api/v1/etl/jobs", admin(s.handleListJobs))
	s.router.Handle("GET /api/v1/etl/stats", admin(s.handleStats))
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.logger.Info("http server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying router, used in tests
func (s *Server) Handler() http.Handler {
	return s.router
}
