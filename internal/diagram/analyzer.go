package diagram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/llm"
	"github.com/ashita-ai/kiseki/internal/model"
)

const analystSystemPrompt = `You are a specialized AI agent that analyzes telemetry data and creates React Flow diagrams. Your tasks include:

1. **Flow Analysis**: Convert telemetry events into nodes and edges for React Flow
2. **Optimization Detection**: Identify performance bottlenecks, inefficiencies, and improvement opportunities
3. **Visualization**: Create clear, informative diagrams that show agent interactions and data flow
4. **Insights**: Provide actionable recommendations for system optimization

When analyzing telemetry:
- Focus on agent interactions, tool calls, and delegation patterns
- Identify timing issues, error patterns, and resource usage
- Look for opportunities to optimize performance and reduce costs
- Consider both technical and business impact of optimizations

Your analysis should be thorough, accurate, and actionable.`

// Analyzer reads a run's telemetry and synthesizes its diagram,
// recording its own steps as telemetry on the same run. The LLM path is
// opt-in; any failure there falls back to deterministic synthesis.
type Analyzer struct {
	recorder *emit.Recorder
	client   llm.Client
	useLLM   bool
	logger   *slog.Logger
}

// NewAnalyzer creates an analyzer over the recorder's store. client may
// be nil when useLLM is false.
func NewAnalyzer(recorder *emit.Recorder, client llm.Client, useLLM bool, logger *slog.Logger) *Analyzer {
	return &Analyzer{recorder: recorder, client: client, useLLM: useLLM && client != nil, logger: logger}
}

// AnalyzeTelemetry builds the diagram for runID. Unknown runs surface
// the store's ErrNotFound.
func (a *Analyzer) AnalyzeTelemetry(ctx context.Context, runID string) (model.DiagramAnalysis, error) {
	ctx = emit.WithAgent(ctx, model.AgentDiagrammer)

	a.recorder.LogStep(ctx, "analysis_start", fmt.Sprintf("Starting telemetry analysis for run %s", runID), nil)

	run, err := a.recorder.Store().GetRun(runID)
	if err != nil {
		return model.DiagramAnalysis{}, fmt.Errorf("diagram: analyze run %s: %w", runID, err)
	}
	events := a.recorder.Store().GetRunEvents(runID)
	a.recorder.LogStep(ctx, "data_retrieved", fmt.Sprintf("Retrieved %d events for analysis", len(events)), nil)

	if a.useLLM {
		return a.analyzeWithLLM(ctx, run, events), nil
	}
	return a.analyzeDeterministic(ctx, run, events), nil
}

func (a *Analyzer) analyzeDeterministic(ctx context.Context, run model.RunSummary, events []model.Event) model.DiagramAnalysis {
	a.recorder.LogStep(ctx, "deterministic_analysis", "Using deterministic analysis method", nil)

	analysis := Analyze(run, events)

	a.recorder.LogStep(ctx, "analysis_complete", "Deterministic analysis completed", nil)
	a.logOutput(ctx, analysis, "deterministic")
	return analysis
}

// analyzeWithLLM asks the model for a diagram in JSON. The response is
// untrusted: a parse failure of any kind drops to the deterministic
// path rather than erroring out.
func (a *Analyzer) analyzeWithLLM(ctx context.Context, run model.RunSummary, events []model.Event) model.DiagramAnalysis {
	a.recorder.LogStep(ctx, "llm_analysis", "Using LLM-based analysis method", nil)

	prompt, err := buildAnalysisPrompt(run, events)
	if err != nil {
		a.recorder.LogStep(ctx, "llm_parse_error", fmt.Sprintf("Failed to prepare telemetry for LLM: %v", err), nil)
		return a.analyzeDeterministic(ctx, run, events)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: analystSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
	resp, err := a.client.Invoke(ctx, messages)
	if err != nil {
		a.logger.Warn("llm analysis failed, falling back", "run_id", run.RunID, "error", err)
		a.recorder.LogStep(ctx, "llm_parse_error", fmt.Sprintf("LLM call failed: %v", err), nil)
		return a.analyzeDeterministic(ctx, run, events)
	}
	a.recorder.LogLLMCall(ctx, emit.LLMCall{
		Model:            resp.Model,
		Prompt:           prompt,
		Response:         resp.Text,
		DurationMs:       resp.Duration.Seconds() * 1000,
		PromptTokens:     &resp.Usage.PromptTokens,
		CompletionTokens: &resp.Usage.CompletionTokens,
		Metadata:         map[string]any{"analysis_type": "telemetry_analysis"},
	})

	var parsed struct {
		Nodes         []model.FlowNode          `json:"nodes"`
		Edges         []model.FlowEdge          `json:"edges"`
		Optimizations []model.OptimizationPoint `json:"optimizations"`
		Summary       string                    `json:"summary"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		a.logger.Warn("llm response unparseable, falling back", "run_id", run.RunID, "error", err)
		a.recorder.LogStep(ctx, "llm_parse_error", fmt.Sprintf("Failed to parse LLM response: %v", err), nil)
		return a.analyzeDeterministic(ctx, run, events)
	}

	summary := parsed.Summary
	if summary == "" {
		summary = "LLM analysis completed"
	}
	analysis := model.DiagramAnalysis{
		Nodes:             parsed.Nodes,
		Edges:             parsed.Edges,
		Optimizations:     parsed.Optimizations,
		Summary:           summary,
		TotalEvents:       len(events),
		AnalysisTimestamp: time.Now().UTC(),
	}
	a.logOutput(ctx, analysis, "llm")
	return analysis
}

func (a *Analyzer) logOutput(ctx context.Context, analysis model.DiagramAnalysis, method string) {
	a.recorder.LogAgentOutput(ctx, "diagram_analysis",
		fmt.Sprintf("Generated diagram with %d nodes and %d edges. %d optimizations found.",
			len(analysis.Nodes), len(analysis.Edges), len(analysis.Optimizations)),
		true, "", map[string]any{
			"node_count":         len(analysis.Nodes),
			"edge_count":         len(analysis.Edges),
			"optimization_count": len(analysis.Optimizations),
			"event_count":        analysis.TotalEvents,
			"analysis_method":    method,
		})
}

func buildAnalysisPrompt(run model.RunSummary, events []model.Event) (string, error) {
	payload := map[string]any{
		"run_id":            run.RunID,
		"start_time":        run.StartTime,
		"end_time":          run.EndTime,
		"status":            run.Status,
		"total_duration_ms": run.TotalDurationMs,
		"events":            events,
		"summary": map[string]any{
			"total_llm_calls":   run.TotalLLMCalls,
			"total_tool_calls":  run.TotalToolCalls,
			"total_delegations": run.TotalDelegations,
			"error_count":       run.ErrorCount,
		},
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("diagram: marshal telemetry: %w", err)
	}

	return fmt.Sprintf(`Analyze the following telemetry data and create a React Flow diagram representation.

Telemetry Data:
%s

Please provide:
1. A list of nodes (agents, tools, events) with positions and styling
2. A list of edges showing relationships and flow
3. Optimization recommendations based on the data
4. A summary of the analysis

Format your response as a single JSON object with "nodes", "edges", "optimizations", and "summary" keys.`, string(data)), nil
}

// extractJSON strips markdown code fences the model may wrap around its
// JSON body.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if after, found := strings.CutPrefix(text, "```json"); found {
		text = after
	} else if after, found := strings.CutPrefix(text, "```"); found {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
