// Package api exposes the gateway's HTTP surface: message listing,
// attachment download, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenilsonani/imap-gateway/internal/audit"
	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/service"
)

// defaultListLimit applies when a list request names no limit.
const defaultListLimit = 1

// Server is the gateway HTTP server.
type Server struct {
	svc        *service.Service
	logger     *logging.Logger
	limiter    *RateLimiter
	auditLog   *audit.Log
	httpServer *http.Server
}

// Config carries the server's network settings.
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer wires the routes. limiter and auditLog may be nil to
// disable those features.
func NewServer(cfg Config, svc *service.Service, logger *logging.Logger, limiter *RateLimiter, auditLog *audit.Log) *Server {
	s := &Server{
		svc:      svc,
		logger:   logger.API(),
		limiter:  limiter,
		auditLog: auditLog,
	}

	mux := http.NewServeMux()

	// Routes
	mux.HandleFunc("GET /emails/{$}", s.wrap("list_emails", s.handleListEmails))
	mux.HandleFunc("GET /emails/{messageID}/attachments/{filename}", s.wrap("fetch_attachment", s.handleFetchAttachment))
	mux.HandleFunc("GET /audit/{$}", s.wrap("audit_query", s.handleAuditLog))
	mux.HandleFunc("GET /healthz", s.withObservability("healthz", s.handleHealthz))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// wrap applies the full middleware chain to an API handler.
func (s *Server) wrap(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return s.withObservability(endpoint, s.withRecovery(s.withRateLimit(h)))
}

// Handler returns the server's root handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "listen", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
