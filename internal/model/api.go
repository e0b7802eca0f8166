package model

import "fmt"

// Field length limits for caller-supplied run input. These keep a single
// oversized request from bloating the in-memory event log, which snapshots
// request content into event metadata.
const (
	MaxQueryLen        = 16 * 1024
	MaxRunIDLen        = 128
	MaxSystemPromptLen = 32 * 1024
)

// Error codes used in API error responses.
const (
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"
)

// RunRequest is the body of POST /api/run/simulate. Simulate selects the
// synthetic generator instead of a live orchestrator run.
type RunRequest struct {
	Query        string `json:"query"`
	Simulate     bool   `json:"simulate"`
	RunID        string `json:"run_id,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Validate checks required fields and length limits on a RunRequest.
func (r RunRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	if len(r.Query) > MaxQueryLen {
		return fmt.Errorf("query exceeds maximum length of %d bytes", MaxQueryLen)
	}
	if len(r.RunID) > MaxRunIDLen {
		return fmt.Errorf("run_id exceeds maximum length of %d characters", MaxRunIDLen)
	}
	if len(r.SystemPrompt) > MaxSystemPromptLen {
		return fmt.Errorf("system_prompt exceeds maximum length of %d bytes", MaxSystemPromptLen)
	}
	return nil
}

// ReactFlow is the node/edge pair rendered by the flow UI.
type ReactFlow struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// TelemetrySummary is the aggregate block returned alongside an event list.
type TelemetrySummary struct {
	TotalEvents      int       `json:"total_events"`
	TotalDurationMs  *float64  `json:"total_duration_ms"`
	Status           RunStatus `json:"status"`
	TotalLLMCalls    int       `json:"total_llm_calls"`
	TotalToolCalls   int       `json:"total_tool_calls"`
	TotalDelegations int       `json:"total_delegations"`
	ErrorCount       int       `json:"error_count"`
	StartTime        string    `json:"start_time,omitempty"`
	EndTime          string    `json:"end_time,omitempty"`
}

// RunResponse is the body of a successful POST /api/run/simulate.
type RunResponse struct {
	RunID         string              `json:"run_id"`
	Response      string              `json:"response"`
	Telemetry     TelemetryResponse   `json:"telemetry"`
	ReactFlow     ReactFlow           `json:"react_flow"`
	Optimizations []OptimizationPoint `json:"optimizations"`
	AgentOutputs  []AgentOutputView   `json:"agent_outputs"`
}

// TelemetryResponse is the body of GET /api/telemetry/{run_id}.
type TelemetryResponse struct {
	RunID   string           `json:"run_id"`
	Events  []Event          `json:"events"`
	Summary TelemetrySummary `json:"summary"`
}

// AgentOutputView is the flattened view of one agent_output event.
type AgentOutputView struct {
	AgentType     AgentType      `json:"agent_type"`
	OutputType    string         `json:"output_type"`
	OutputContent string         `json:"output_content"`
	Timestamp     string         `json:"timestamp"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Metadata      map[string]any `json:"metadata"`
}

// RunListItem is one entry of GET /api/runs.
type RunListItem struct {
	RunID           string    `json:"run_id"`
	ThreadID        string    `json:"thread_id,omitempty"`
	Status          RunStatus `json:"status"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	TotalDurationMs *float64  `json:"total_duration_ms"`
	TotalEvents     int       `json:"total_events"`
}

// RunListResponse is the body of GET /api/runs.
type RunListResponse struct {
	Runs []RunListItem `json:"runs"`
}

// HealthResponse is the body of GET /api/health. KnowledgeBase is
// omitted when no vector store is configured.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime"`
	KnowledgeBase string  `json:"knowledge_base,omitempty"`
}

// SampleDataResponse is the body of POST /api/generate-sample-data.
type SampleDataResponse struct {
	Message string   `json:"message"`
	RunIDs  []string `json:"run_ids"`
}

// MessageResponse is a minimal acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error body for all API errors.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
