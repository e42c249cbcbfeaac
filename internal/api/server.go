// Package api provides the HTTP REST API for InnoFolio.
//
// Endpoints:
//
//	POST   /api/chat                         - blocking chat
//	POST   /api/chat/stream                  - streaming chat (SSE)
//	GET    /api/suggestions                  - starter prompts
//	GET    /api/conversations                - list conversations
//	POST   /api/conversations                - create conversation
//	GET    /api/conversations/{id}           - conversation with messages
//	DELETE /api/conversations/{id}           - delete conversation
//	POST   /api/conversations/{id}/messages  - append message
//	PATCH  /api/conversations/{id}/pin       - toggle pin
//	PATCH  /api/messages/{id}/save           - toggle save
//	POST   /api/resume/analyze               - upload and analyze resume
//	GET    /api/resumes                      - list analyses
//	GET    /api/resume/{id}                  - single analysis
//	DELETE /api/resume/{id}                  - delete analysis
//	GET    /health                           - liveness probe
//	GET    /ready                            - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging, CORS)
//   - health.go: health check endpoints
//   - chat.go: chat and suggestion endpoints
//   - conversations.go: conversation management endpoints
//   - resume.go: resume analysis endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/innofolio/innofolio/internal/auth"
	"github.com/innofolio/innofolio/internal/log"
	"github.com/innofolio/innofolio/internal/resume"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Streaming chat responses need generous headroom here.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the dependencies for NewServer.
type ServerConfig struct {
	Logger        log.Logger
	Pipeline      Responder
	Conversations ConversationStore
	Resumes       ResumeStore
	Analyzer      ResumeAnalyzer
	Extractor     resume.Extractor
	Pool          *pgxpool.Pool
	Verifier      auth.Verifier
	CORSOrigins   []string
	HistoryWindow int
}

// Server is the HTTP server for the InnoFolio REST API.
type Server struct {
	mux    *http.ServeMux
	config ServerConfig
	logger log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	NewHealthHandler(cfg.Pool, cfg.Logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Pipeline, cfg.Conversations, cfg.HistoryWindow, cfg.Logger).RegisterRoutes(mux)
	if cfg.Conversations != nil {
		NewConversationHandler(cfg.Conversations, cfg.Logger).RegisterRoutes(mux)
	}
	if cfg.Analyzer != nil {
		NewResumeHandler(cfg.Extractor, cfg.Analyzer, cfg.Resumes, cfg.Logger).RegisterRoutes(mux)
	}

	return &Server{mux: mux, config: cfg, logger: cfg.Logger}
}

// Handler returns the HTTP handler with middleware applied.
// Order: recovery → logging → CORS → identity resolution → routes.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	}
	if len(s.config.CORSOrigins) > 0 {
		middlewares = append(middlewares, corsMiddleware(s.config.CORSOrigins))
	}
	if s.config.Verifier != nil {
		middlewares = append(middlewares, auth.Middleware(s.config.Verifier, s.logger))
	}
	return chain(s.mux, middlewares...)
}

// chain wraps h with the given middlewares. The first middleware is the
// outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
