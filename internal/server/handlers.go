package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kiseki/internal/agent"
	"github.com/ashita-ai/kiseki/internal/diagram"
	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
	"github.com/ashita-ai/kiseki/internal/synthetic"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               *store.Store
	recorder            *emit.Recorder
	orchestrator        *agent.Orchestrator
	orchestratorFor     func(systemPrompt string) *agent.Orchestrator
	analyzer            *diagram.Analyzer
	generator           *synthetic.Generator
	kbHealth            HealthChecker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// OrchestratorFor is optional; without it a custom system_prompt in a
// run request falls back to the default orchestrator. KBHealth is
// optional; without it the health endpoint omits knowledge-base status.
type HandlersDeps struct {
	Store               *store.Store
	Recorder            *emit.Recorder
	Orchestrator        *agent.Orchestrator
	OrchestratorFor     func(systemPrompt string) *agent.Orchestrator
	Analyzer            *diagram.Analyzer
	Generator           *synthetic.Generator
	KBHealth            HealthChecker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		recorder:            d.Recorder,
		orchestrator:        d.Orchestrator,
		orchestratorFor:     d.OrchestratorFor,
		analyzer:            d.Analyzer,
		generator:           d.Generator,
		kbHealth:            d.KBHealth,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /api/health. A lost knowledge base is
// reported but does not flip the overall status: the orchestrator
// degrades to answering without retrieved context.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
	if h.kbHealth != nil {
		if err := h.kbHealth.Healthy(r.Context()); err != nil {
			h.logger.Warn("knowledge base unreachable", "error", err)
			resp.KnowledgeBase = "unreachable"
		} else {
			resp.KnowledgeBase = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRunSimulate handles POST /api/run/simulate. The simulate flag
// selects a synthetic run; otherwise the query goes through the live
// orchestrator.
func (h *Handlers) HandleRunSimulate(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	var responseText string
	if req.Simulate {
		h.generator.GenerateRun(synthetic.Options{
			RunID:             runID,
			Duration:          time.Duration((1 + 2*rand.Float64()) * float64(time.Minute)),
			EventCount:        10 + rand.Intn(16),
			IncludeErrors:     rand.Float64() < 0.3,
			IncludeDelegation: rand.Float64() < 0.7,
		})
		responseText = fmt.Sprintf("Simulated response for query: '%s'. This is a synthetic response generated for testing purposes.", req.Query)
	} else {
		ctx, _ := h.recorder.StartRun(r.Context(), runID, "")

		orch := h.orchestrator
		if req.SystemPrompt != "" && h.orchestratorFor != nil {
			orch = h.orchestratorFor(req.SystemPrompt)
		}
		result, err := orch.ProcessQuery(ctx, req.Query)
		// The run is closed as completed even when the query failed,
		// so the partial telemetry stays queryable.
		h.recorder.EndRun(ctx, model.RunStatusCompleted)
		if err != nil {
			h.logger.Error("query processing failed", "run_id", runID, "error", err)
			writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, fmt.Sprintf("error processing request: %v", err))
			return
		}
		responseText = result.Response
	}

	h.respondWithRun(w, r, runID, responseText)
}

// respondWithRun assembles the full run response: diagram analysis,
// event log, summary, and flattened agent outputs.
func (h *Handlers) respondWithRun(w http.ResponseWriter, r *http.Request, runID, responseText string) {
	run, err := h.store.GetRun(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, "failed to retrieve run data")
		return
	}

	reactFlow := model.ReactFlow{Nodes: []model.FlowNode{}, Edges: []model.FlowEdge{}}
	optimizations := []model.OptimizationPoint{}

	ctx := emit.WithRun(r.Context(), runID, run.ThreadID)
	analysis, err := h.analyzer.AnalyzeTelemetry(ctx, runID)
	if err != nil {
		// A diagram failure degrades to an empty flow rather than
		// failing the whole run response.
		h.logger.Warn("diagram analysis failed", "run_id", runID, "error", err)
	} else {
		reactFlow = model.ReactFlow{Nodes: analysis.Nodes, Edges: analysis.Edges}
		optimizations = analysis.Optimizations
	}

	// Re-read the summary: the analyzer appends its own events.
	run, err = h.store.GetRun(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, "failed to retrieve run data")
		return
	}
	events := h.store.GetRunEvents(runID)

	writeJSON(w, http.StatusOK, model.RunResponse{
		RunID:    runID,
		Response: responseText,
		Telemetry: model.TelemetryResponse{
			RunID:   runID,
			Events:  events,
			Summary: summaryFor(run, len(events), false),
		},
		ReactFlow:     reactFlow,
		Optimizations: optimizations,
		AgentOutputs:  agentOutputViews(events),
	})
}

// HandleGetTelemetry handles GET /api/telemetry/{run_id}.
func (h *Handlers) HandleGetTelemetry(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	run, err := h.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.ErrCodeNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, err.Error())
		return
	}

	events := h.store.GetRunEvents(runID)
	writeJSON(w, http.StatusOK, model.TelemetryResponse{
		RunID:   runID,
		Events:  events,
		Summary: summaryFor(run, len(events), true),
	})
}

// HandleListRuns handles GET /api/runs.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.store.AllRuns()

	items := make([]model.RunListItem, 0, len(runs))
	for _, run := range runs {
		item := model.RunListItem{
			RunID:           run.RunID,
			ThreadID:        run.ThreadID,
			Status:          run.Status,
			StartTime:       run.StartTime.Format(time.RFC3339Nano),
			TotalDurationMs: run.TotalDurationMs,
			TotalEvents:     len(run.AgentEvents),
		}
		if run.EndTime != nil {
			item.EndTime = run.EndTime.Format(time.RFC3339Nano)
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, model.RunListResponse{Runs: items})
}

// HandleGenerateSampleData handles POST /api/generate-sample-data.
func (h *Handlers) HandleGenerateSampleData(w http.ResponseWriter, r *http.Request) {
	count := 5
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidInput, "count must be a positive integer")
			return
		}
		count = parsed
	}

	runs := h.generator.GenerateRuns(count, synthetic.Options{
		IncludeErrors:     true,
		IncludeDelegation: true,
	})

	runIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		runIDs = append(runIDs, run.RunID)
	}

	writeJSON(w, http.StatusOK, model.SampleDataResponse{
		Message: fmt.Sprintf("Generated %d sample runs", count),
		RunIDs:  runIDs,
	})
}

// HandleDeleteRun handles DELETE /api/telemetry/{run_id}.
func (h *Handlers) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if err := h.store.DeleteRun(runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.ErrCodeNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{
		Message: fmt.Sprintf("Run %s deleted", runID),
	})
}

// summaryFor flattens a run summary into the API aggregate block.
// withTimes adds start and end timestamps for the standalone telemetry
// endpoint.
func summaryFor(run model.RunSummary, eventCount int, withTimes bool) model.TelemetrySummary {
	s := model.TelemetrySummary{
		TotalEvents:      eventCount,
		TotalDurationMs:  run.TotalDurationMs,
		Status:           run.Status,
		TotalLLMCalls:    run.TotalLLMCalls,
		TotalToolCalls:   run.TotalToolCalls,
		TotalDelegations: run.TotalDelegations,
		ErrorCount:       run.ErrorCount,
	}
	if withTimes {
		s.StartTime = run.StartTime.Format(time.RFC3339Nano)
		if run.EndTime != nil {
			s.EndTime = run.EndTime.Format(time.RFC3339Nano)
		}
	}
	return s
}

// agentOutputViews extracts the flattened agent_output events from a log.
func agentOutputViews(events []model.Event) []model.AgentOutputView {
	views := []model.AgentOutputView{}
	for _, event := range events {
		if event.Type != model.EventAgentOutput || event.AgentOutput == nil {
			continue
		}
		agentType := event.AgentType
		if agentType == "" {
			agentType = model.AgentType("unknown")
		}
		views = append(views, model.AgentOutputView{
			AgentType:     agentType,
			OutputType:    event.AgentOutput.OutputType,
			OutputContent: event.AgentOutput.OutputContent,
			Timestamp:     event.Timestamp.Format(time.RFC3339Nano),
			Success:       event.AgentOutput.Success,
			ErrorMessage:  event.AgentOutput.ErrorMessage,
			Metadata:      event.AgentOutput.OutputMetadata,
		})
	}
	return views
}
