// Package mcp implements the Model Context Protocol server for Kiseki.
//
// The MCP server exposes the telemetry store and diagram analyzer as
// tools, so MCP-compatible agents can browse runs and request flow
// analyses over the same core the HTTP API serves.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kiseki/internal/diagram"
	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

// Server wraps the MCP server with Kiseki's telemetry core.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     *store.Store
	analyzer  *diagram.Analyzer
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools.
func New(st *store.Store, analyzer *diagram.Analyzer, version string, logger *slog.Logger) *Server {
	s := &Server{
		store:    st,
		analyzer: analyzer,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kiseki",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// kiseki_list_runs — enumerate recorded runs.
	s.mcpServer.AddTool(
		mcplib.NewTool("kiseki_list_runs",
			mcplib.WithDescription(`List all recorded orchestration runs with their status and aggregate counters.

WHAT YOU GET BACK: one entry per run with run_id, status, start/end times,
total duration, and the event count. Use the run_id with kiseki_get_telemetry
or kiseki_analyze_telemetry to drill in.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleListRuns,
	)

	// kiseki_get_telemetry — full event log for one run.
	s.mcpServer.AddTool(
		mcplib.NewTool("kiseki_get_telemetry",
			mcplib.WithDescription(`Get the complete telemetry for a run: the ordered event log plus the aggregate summary.

Events are tagged by type (llm_call, tool_call, delegation, step_log,
agent_output) and attributed to the agent that emitted them.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("The run to fetch"),
				mcplib.Required(),
			),
		),
		s.handleGetTelemetry,
	)

	// kiseki_analyze_telemetry — synthesize the flow diagram for a run.
	s.mcpServer.AddTool(
		mcplib.NewTool("kiseki_analyze_telemetry",
			mcplib.WithDescription(`Analyze a run's telemetry into a React Flow diagram with optimization findings.

WHAT YOU GET BACK: nodes and edges laid out in agent/tool/event tiers,
plus optimization points flagging long operations, high error rates,
heavy tool usage, and deep delegation chains.

Note: the analysis itself is recorded as telemetry on the analyzed run,
so repeated calls grow the run's event log.`),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("The run to analyze"),
				mcplib.Required(),
			),
		),
		s.handleAnalyzeTelemetry,
	)
}

func (s *Server) handleListRuns(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runs := s.store.AllRuns()

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

	return jsonResult(model.RunListResponse{Runs: items})
}

func (s *Server) handleGetTelemetry(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResult(fmt.Sprintf("run %s not found", runID)), nil
		}
		return errorResult(fmt.Sprintf("get telemetry failed: %v", err)), nil
	}

	events := s.store.GetRunEvents(runID)
	summary := model.TelemetrySummary{
		TotalEvents:      len(events),
		TotalDurationMs:  run.TotalDurationMs,
		Status:           run.Status,
		TotalLLMCalls:    run.TotalLLMCalls,
		TotalToolCalls:   run.TotalToolCalls,
		TotalDelegations: run.TotalDelegations,
		ErrorCount:       run.ErrorCount,
		StartTime:        run.StartTime.Format(time.RFC3339Nano),
	}
	if run.EndTime != nil {
		summary.EndTime = run.EndTime.Format(time.RFC3339Nano)
	}

	return jsonResult(model.TelemetryResponse{
		RunID:   runID,
		Events:  events,
		Summary: summary,
	})
}

func (s *Server) handleAnalyzeTelemetry(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errorResult(fmt.Sprintf("run %s not found", runID)), nil
		}
		return errorResult(fmt.Sprintf("analyze failed: %v", err)), nil
	}

	analysis, err := s.analyzer.AnalyzeTelemetry(emit.WithRun(ctx, runID, run.ThreadID), runID)
	if err != nil {
		return errorResult(fmt.Sprintf("analyze failed: %v", err)), nil
	}

	return jsonResult(analysis)
}

func jsonResult(data any) (*mcplib.CallToolResult, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(raw)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
