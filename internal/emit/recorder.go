package emit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

// maxSnapshotLen is the character budget for one captured tool input or
// output value. Anything longer is cut with a trailing ellipsis marker so
// large tool payloads cannot grow the log without bound.
const maxSnapshotLen = 400

// maxExcerptLen bounds the prompt/response excerpts stored in llm_call
// event metadata.
const maxExcerptLen = 500

// Recorder emits telemetry events into the store using the ambient
// identifiers bound to the context.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(s *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, logger: logger}
}

// Store exposes the underlying store for read entry points.
func (r *Recorder) Store() *store.Store {
	return r.store
}

// StartRun creates the run in the store and returns a context with the
// run (and optional thread) id bound. An empty runID generates one.
func (r *Recorder) StartRun(ctx context.Context, runID, threadID string) (context.Context, model.RunSummary) {
	if runID == "" {
		runID = uuid.New().String()
	}
	run := r.store.StartRun(runID, threadID)
	ctx = WithRun(ctx, runID, threadID)
	r.logger.Info("run started", "run_id", runID, "thread_id", threadID)
	return ctx, run
}

// EndRun transitions the ambient run to a terminal status. No-op when no
// run id is bound or the run is unknown to the store.
func (r *Recorder) EndRun(ctx context.Context, status model.RunStatus) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	if _, err := r.store.EndRun(runID, status); err != nil {
		r.logger.Warn("end run skipped", "run_id", runID, "error", err)
		return
	}
	r.logger.Info("run ended", "run_id", runID, "status", string(status))
}

// LogStep records a step_log event for the ambient run.
func (r *Recorder) LogStep(ctx context.Context, stepName, description string, data map[string]any) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	r.store.AddEvent(model.NewStepLogEvent(runID, model.EventMeta{
		ThreadID:  ThreadIDFromContext(ctx),
		AgentType: AgentFromContext(ctx),
		StepName:  stepName,
	}, model.StepLogPayload{
		StepDescription: description,
		StepData:        data,
	}))
	r.logger.Info("step", "run_id", runID, "step_name", stepName, "description", description)
}

// LLMCall describes one model invocation for LogLLMCall.
type LLMCall struct {
	Model            string
	Prompt           string
	Response         string
	DurationMs       float64
	PromptTokens     *int
	CompletionTokens *int
	Temperature      *float64
	Metadata         map[string]any
}

// LogLLMCall records an llm_call event for the ambient run. Prompt and
// response are excerpted into metadata with a bounded length.
func (r *Recorder) LogLLMCall(ctx context.Context, call LLMCall) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return
	}

	total := 0
	if call.PromptTokens != nil {
		total += *call.PromptTokens
	}
	if call.CompletionTokens != nil {
		total += *call.CompletionTokens
	}

	metadata := map[string]any{
		"prompt":   truncate(call.Prompt, maxExcerptLen),
		"response": truncate(call.Response, maxExcerptLen),
	}
	for k, v := range call.Metadata {
		metadata[k] = v
	}

	duration := call.DurationMs
	r.store.AddEvent(model.NewLLMCallEvent(runID, model.EventMeta{
		ThreadID:   ThreadIDFromContext(ctx),
		AgentType:  AgentFromContext(ctx),
		StepName:   "llm_processing",
		DurationMs: &duration,
		Metadata:   metadata,
	}, model.LLMCallPayload{
		Model:            call.Model,
		PromptTokens:     call.PromptTokens,
		CompletionTokens: call.CompletionTokens,
		TotalTokens:      &total,
		Temperature:      call.Temperature,
		ResponseTimeMs:   &duration,
	}))
	r.logger.Info("llm call", "run_id", runID, "model", call.Model, "duration_ms", call.DurationMs)
}

// LogDelegation records a delegation event attributed to the source agent.
// An invalid delegation (identical source and destination) is dropped and
// logged rather than stored.
func (r *Recorder) LogDelegation(ctx context.Context, from, to model.AgentType, reason string, input, output map[string]any) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	ev, err := model.NewDelegationEvent(runID, model.EventMeta{
		ThreadID:  ThreadIDFromContext(ctx),
		AgentType: from,
		StepName:  "delegation_decision",
	}, model.DelegationPayload{
		FromAgent:        from,
		ToAgent:          to,
		DelegationReason: reason,
		InputData:        input,
		OutputData:       output,
	})
	if err != nil {
		r.logger.Error("invalid delegation dropped", "run_id", runID, "error", err)
		return
	}
	r.store.AddEvent(ev)
	r.logger.Info("delegation", "run_id", runID, "from", string(from), "to", string(to), "reason", reason)
}

// LogAgentOutput records an agent_output event for the ambient run.
func (r *Recorder) LogAgentOutput(ctx context.Context, outputType, content string, success bool, errorMessage string, metadata map[string]any) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return
	}
	r.store.AddEvent(model.NewAgentOutputEvent(runID, model.EventMeta{
		ThreadID:  ThreadIDFromContext(ctx),
		AgentType: AgentFromContext(ctx),
		StepName:  "agent_" + outputType,
	}, model.AgentOutputPayload{
		OutputType:     outputType,
		OutputContent:  content,
		OutputMetadata: metadata,
		Success:        success,
		ErrorMessage:   errorMessage,
	}))
	r.logger.Info("agent output", "run_id", runID, "output_type", outputType, "success", success)
}

// Tool runs fn wrapped in tool-call telemetry: the call is timed, and a
// tool_call event is recorded with truncated input/output snapshots. On
// failure the event carries the error text and the original error is
// returned unchanged — the wrapper never swallows failures. Without an
// ambient run id, fn runs with no telemetry at all.
func Tool[T any](ctx context.Context, r *Recorder, toolName string, input map[string]any, fn func(context.Context) (T, error)) (T, error) {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		return fn(ctx)
	}

	meta := func(durationMs float64) model.EventMeta {
		return model.EventMeta{
			ThreadID:   ThreadIDFromContext(ctx),
			AgentType:  AgentFromContext(ctx),
			StepName:   "tool_" + toolName,
			DurationMs: &durationMs,
		}
	}

	start := time.Now()
	result, err := fn(ctx)
	durationMs := time.Since(start).Seconds() * 1000

	if err != nil {
		r.store.AddEvent(model.NewToolCallEvent(runID, meta(durationMs), model.ToolCallPayload{
			ToolName:     toolName,
			ToolInput:    Snapshot(input),
			Success:      false,
			ErrorMessage: err.Error(),
		}))
		r.logger.Error("tool failed", "run_id", runID, "tool_name", toolName, "duration_ms", durationMs, "error", err)
		return result, err
	}

	r.store.AddEvent(model.NewToolCallEvent(runID, meta(durationMs), model.ToolCallPayload{
		ToolName:   toolName,
		ToolInput:  Snapshot(input),
		ToolOutput: Snapshot(map[string]any{"result": result}),
		Success:    true,
	}))
	r.logger.Info("tool succeeded", "run_id", runID, "tool_name", toolName, "duration_ms", durationMs)
	return result, nil
}

// Snapshot renders each value to a bounded-length text representation,
// truncating past the character budget with a trailing ellipsis marker.
func Snapshot(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = truncate(fmt.Sprintf("%v", value), maxSnapshotLen)
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
