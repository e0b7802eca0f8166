package model

import "time"

// Node kind tags produced by diagram synthesis.
const (
	NodeTypeAgent = "agent"
	NodeTypeTool  = "tool"
	NodeTypeEvent = "event"
)

// Edge relation tags carried in FlowEdge.Data["type"].
const (
	EdgeAgentTransition = "agent_transition"
	EdgeToolUsage       = "tool_usage"
	EdgeEventFlow       = "event_flow"
	EdgeEventTool       = "event_tool"
)

// Position is a 2-D layout coordinate. Positions are a synthesis-time
// layout and carry no meaning beyond non-overlap.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowNode is one node of a synthesized flow graph.
type FlowNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
	Style    map[string]any `json:"style,omitempty"`
}

// FlowEdge connects two nodes of the same synthesis call. Source and
// Target always reference node IDs present in the same DiagramAnalysis.
type FlowEdge struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	Style  map[string]any `json:"style,omitempty"`
}

// OptimizationPoint is one finding produced by the optimization rules.
// Immutable; produced fresh on every synthesis call.
type OptimizationPoint struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Suggestion     string `json:"suggestion"`
	ImpactEstimate string `json:"impact_estimate,omitempty"`
}

// DiagramAnalysis is the complete result of one synthesis call. It is a
// pure output value with no lifecycle beyond the call that produced it.
type DiagramAnalysis struct {
	Nodes             []FlowNode          `json:"nodes"`
	Edges             []FlowEdge          `json:"edges"`
	Optimizations     []OptimizationPoint `json:"optimizations"`
	Summary           string              `json:"summary"`
	TotalEvents       int                 `json:"total_events"`
	AnalysisTimestamp time.Time           `json:"analysis_timestamp"`
}
