// Package server exposes the collected data over a read-only JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyinsider/internal/server/handler"
	"github.com/alanyoungcy/polyinsider/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port              int
	CORSOrigins       []string
	APIKey            string // empty disables authentication
	RequestsPerSecond float64
	Burst             int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Traders *handler.TraderHandler
	Markets *handler.MarketHandler
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, handlers, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the routed, middleware-wrapped handler.
func Routes(cfg Config, handlers Handlers, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Health.Status)

	mux.HandleFunc("GET /api/traders", handlers.Traders.ListTraders)
	mux.HandleFunc("GET /api/traders/{address}", handlers.Traders.GetTrader)
	mux.HandleFunc("GET /api/traders/{address}/positions", handlers.Traders.ListPositions)
	mux.HandleFunc("GET /api/traders/{address}/activities", handlers.Traders.ListActivities)
	mux.HandleFunc("GET /api/traders/{address}/snapshots", handlers.Traders.ListSnapshots)
	mux.HandleFunc("GET /api/traders/{address}/snapshots/{run_id}", handlers.Traders.GetSnapshot)

	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	// CORS is outermost; auth runs closest to the mux.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.RateLimit(cfg.RequestsPerSecond, cfg.Burst)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
