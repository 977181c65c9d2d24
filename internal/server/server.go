// Package server is the HTTP and websocket API over the price service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/server/handler"
	"github.com/alanyoungcy/tpwatch/internal/server/middleware"
	"github.com/alanyoungcy/tpwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // guards POST routes; empty disables the check
}

// Handlers aggregates the HTTP handlers the server registers. Archive may
// be nil when cold storage is not configured.
type Handlers struct {
	Health  *handler.HealthHandler
	Prices  *handler.PriceHandler
	Archive *handler.ArchiveHandler
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewHandler builds the routed handler with the middleware chain applied.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	requireKey := middleware.RequireKey(cfg.APIKey)

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/items", handlers.Prices.ListItems)
	mux.HandleFunc("GET /api/items/{id}/price", handlers.Prices.GetPrice)
	mux.Handle("POST /api/items/{id}/record", requireKey(http.HandlerFunc(handlers.Prices.RecordPrice)))
	mux.HandleFunc("GET /api/items/{id}/history", handlers.Prices.GetHistory)
	mux.HandleFunc("GET /api/items/{id}/aggregate", handlers.Prices.GetAggregate)

	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/items/{id}/archives", handlers.Archive.ListArchives)
		mux.HandleFunc("GET /api/items/{id}/archives/{day}", handlers.Archive.GetArchive)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// NewServer creates a Server listening on cfg.Port.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, wsHub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
