package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nichedotsol/agentex/internal/auth"
	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/deploy"
	"github.com/nichedotsol/agentex/internal/ratelimit"
	"github.com/nichedotsol/agentex/internal/redact"
	"github.com/nichedotsol/agentex/internal/validator"
)

// Server is the AgentEX HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional (nil-safe): Limiter, MCPServer, Redactor.
type ServerConfig struct {
	// Required dependencies.
	Store      build.Store
	Catalog    *catalog.Catalog
	Validator  *validator.Validator
	Runner     *build.Runner
	Dispatcher *deploy.Dispatcher
	JWTMgr     *auth.JWTManager
	Logger     *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer
	Redactor  *redact.Redactor

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	BaseURL             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Catalog:             cfg.Catalog,
		Validator:           cfg.Validator,
		Runner:              cfg.Runner,
		Dispatcher:          cfg.Dispatcher,
		Redactor:            cfg.Redactor,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		BaseURL:             cfg.BaseURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Mutating endpoints are rate limited by client IP; reads are not.
	limited := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		reqIDFunc := func(r *http.Request) string {
			return RequestIDFromContext(r.Context())
		}
		limited = ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /v2/validate", limited(http.HandlerFunc(h.HandleValidate)))
	mux.Handle("POST /v2/generate", limited(http.HandlerFunc(h.HandleGenerate)))
	mux.Handle("POST /v2/deploy", limited(http.HandlerFunc(h.HandleDeploy)))

	mux.HandleFunc("GET /v2/status/{build_id}", h.HandleStatus)
	mux.HandleFunc("GET /v2/download/{build_id}", h.HandleDownload)

	mux.HandleFunc("POST /v2/tools/search", h.HandleSearchTools)
	mux.HandleFunc("GET /v2/tools/search", h.HandleSearchToolsGet)
	mux.HandleFunc("GET /v2/tools/{tool_id}", h.HandleGetTool)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
