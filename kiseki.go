// Package kiseki is the public API for embedding the Kiseki telemetry server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := kiseki.New(
//	    kiseki.WithVersion(version),
//	    kiseki.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kiseki (root) imports
// internal/*, but internal/* never imports kiseki (root). Public types
// (Message, LLMResponse) are standalone structs with no internal imports;
// the adapters that bridge them live here because this is the only file
// that sees both sides of the boundary.
package kiseki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kiseki/internal/agent"
	"github.com/ashita-ai/kiseki/internal/config"
	"github.com/ashita-ai/kiseki/internal/diagram"
	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/llm"
	"github.com/ashita-ai/kiseki/internal/mcp"
	"github.com/ashita-ai/kiseki/internal/search"
	"github.com/ashita-ai/kiseki/internal/server"
	"github.com/ashita-ai/kiseki/internal/store"
	"github.com/ashita-ai/kiseki/internal/synthetic"
	"github.com/ashita-ai/kiseki/internal/telemetry"
)

const shutdownHTTPTimeout = 10 * time.Second

// App is the Kiseki server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	srv          *server.Server
	qdrant       *search.QdrantSearcher // nil when Qdrant is not configured
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Kiseki server. It loads configuration, wires all
// subsystems, and returns a ready-to-run App. It does NOT start any
// goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kiseki starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Telemetry store and recorder.
	st := store.New()
	st.RegisterMetrics()
	recorder := emit.NewRecorder(st, logger)

	// LLM client — external override takes priority over env config.
	var client llm.Client
	if o.llmClient != nil {
		client = &llmAdapter{c: o.llmClient}
	} else {
		client = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}

	// Knowledge base searcher.
	var searcher search.Searcher
	var qdrantSearcher *search.QdrantSearcher
	switch {
	case o.searcher != nil:
		searcher = &searcherAdapter{s: o.searcher}
	case cfg.QdrantURL != "":
		var embedder search.Embedder
		if cfg.OpenAIAPIKey != "" {
			embedder = search.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
			logger.Info("embedder: openai", "model", cfg.EmbeddingModel)
		} else {
			embedder = &search.HashEmbedder{Dims: cfg.EmbeddingDimensions}
			logger.Info("embedder: hash (no OPENAI_API_KEY)")
		}
		qdrantSearcher, err = search.NewQdrantSearcher(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
			TopK:       cfg.SearchTopK,
		}, embedder, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		if err := qdrantSearcher.EnsureCollection(context.Background()); err != nil {
			_ = qdrantSearcher.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("qdrant ensure collection: %w", err)
		}
		// Seed the built-in knowledge base. Document IDs are content-derived,
		// so repeated startups upsert in place. A seed failure is not fatal:
		// the collection still serves whatever it already holds.
		if err := qdrantSearcher.Upsert(context.Background(), search.BuiltinDocs()); err != nil {
			logger.Warn("qdrant: seeding builtin documents failed", "error", err)
		}
		searcher = qdrantSearcher
		logger.Info("qdrant: enabled", "collection", cfg.QdrantCollection)
	default:
		searcher = search.NewStaticSearcher(search.BuiltinHits())
		logger.Info("qdrant: disabled (no QDRANT_URL), static searcher serving builtin documents")
	}

	// Agents.
	summarizer := agent.NewSummarizer(client, recorder, logger)
	orchestratorFor := func(systemPrompt string) *agent.Orchestrator {
		return agent.NewOrchestrator(client, recorder, searcher, summarizer, systemPrompt, logger)
	}
	analyzer := diagram.NewAnalyzer(recorder, client, cfg.UseLLMDiagrammer, logger)

	// Synthetic generator. Seed 0 means a fresh sequence per process.
	seed := cfg.SyntheticSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator := synthetic.New(st, seed)

	// MCP server.
	mcpSrv := mcp.New(st, analyzer, version, logger)

	// HTTP server. A nil *QdrantSearcher must not become a non-nil
	// HealthChecker interface, so the assignment is guarded.
	var kbHealth server.HealthChecker
	if qdrantSearcher != nil {
		kbHealth = qdrantSearcher
	}
	srv := server.New(server.ServerConfig{
		Store:               st,
		Recorder:            recorder,
		Orchestrator:        orchestratorFor(""),
		OrchestratorFor:     orchestratorFor,
		Analyzer:            analyzer,
		Generator:           generator,
		KBHealth:            kbHealth,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		srv:          srv,
		qdrant:       qdrantSearcher,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a
// fatal server error occurs. On return, Shutdown is called automatically
// — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops accepting HTTP requests, drains in-flight ones, then
// closes the Qdrant connection and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kiseki shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, shutdownHTTPTimeout)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	if a.qdrant != nil {
		_ = a.qdrant.Close()
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("kiseki stopped")
	return nil
}

// llmAdapter bridges the public LLMClient to the internal client interface.
type llmAdapter struct {
	c LLMClient
}

func (a *llmAdapter) Invoke(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	public := make([]Message, len(messages))
	for i, m := range messages {
		public[i] = Message{Role: m.Role, Content: m.Content}
	}
	resp, err := a.c.Invoke(ctx, public)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.TotalTokens,
		},
		Duration: resp.Duration,
	}, nil
}

// searcherAdapter bridges the public Searcher to the internal interface.
type searcherAdapter struct {
	s Searcher
}

func (a *searcherAdapter) Query(ctx context.Context, text string) (string, error) {
	return a.s.Query(ctx, text)
}
