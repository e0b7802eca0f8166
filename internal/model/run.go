// Package model defines the core domain types for Kiseki: the tagged
// telemetry event variants, the per-run summary aggregate, and the flow
// graph produced by diagram synthesis.
//
// Types use strong typing (UUIDs, time.Time, enums) and avoid interface{}
// except for the open string-keyed metadata mappings the event model
// deliberately leaves schemaless.
package model

import "time"

// RunStatus represents the lifecycle state of an orchestration run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunSummary is the aggregate view of one orchestration run.
//
// The counters are maintained incrementally by the store on every event
// append: each one always equals the count of events of its kind seen so
// far, and ErrorCount equals the count of events whose success flag is
// false. TotalDurationMs is set when the run ends and is absent while
// the run is still in flight.
type RunSummary struct {
	RunID            string     `json:"run_id"`
	ThreadID         string     `json:"thread_id,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           RunStatus  `json:"status"`
	TotalDurationMs  *float64   `json:"total_duration_ms,omitempty"`
	AgentEvents      []Event    `json:"agent_events"`
	TotalLLMCalls    int        `json:"total_llm_calls"`
	TotalToolCalls   int        `json:"total_tool_calls"`
	TotalDelegations int        `json:"total_delegations"`
	ErrorCount       int        `json:"error_count"`
}
