package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kiseki/internal/agent"
	"github.com/ashita-ai/kiseki/internal/diagram"
	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/store"
	"github.com/ashita-ai/kiseki/internal/synthetic"
)

// Server is the Kiseki HTTP server.
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
// Server. Optional fields (nil-safe): OrchestratorFor, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Store        *store.Store
	Recorder     *emit.Recorder
	Orchestrator *agent.Orchestrator
	Analyzer     *diagram.Analyzer
	Generator    *synthetic.Generator
	Logger       *slog.Logger

	// Optional dependencies (nil = disabled).
	OrchestratorFor func(systemPrompt string) *agent.Orchestrator
	MCPServer       *mcpserver.MCPServer
	KBHealth        HealthChecker

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Recorder:            cfg.Recorder,
		Orchestrator:        cfg.Orchestrator,
		OrchestratorFor:     cfg.OrchestratorFor,
		Analyzer:            cfg.Analyzer,
		Generator:           cfg.Generator,
		KBHealth:            cfg.KBHealth,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/run/simulate", h.HandleRunSimulate)
	mux.HandleFunc("GET /api/telemetry/{run_id}", h.HandleGetTelemetry)
	mux.HandleFunc("DELETE /api/telemetry/{run_id}", h.HandleDeleteRun)
	mux.HandleFunc("GET /api/runs", h.HandleListRuns)
	mux.HandleFunc("POST /api/generate-sample-data", h.HandleGenerateSampleData)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// Middleware chain (outermost executes first):
	// request ID → CORS → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(handler)
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
