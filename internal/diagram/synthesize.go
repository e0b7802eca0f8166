// Package diagram converts telemetry into flow graphs with optimization
// findings. Synthesis is deterministic: the same run and event slice
// always produce the same nodes, edges, and findings.
package diagram

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashita-ai/kiseki/internal/model"
)

// Layout constants. Agents sit on the top tier, tools below them, and
// events fill a grid under both.
const (
	agentSpacing  = 350
	toolSpacing   = 350
	eventsPerRow  = 6
	eventSpacingX = 200
	eventSpacingY = 120
	agentTierY    = 0
	toolTierY     = 200
	eventStartY   = 400
)

var (
	agentNodeStyle = map[string]any{"background": "#e1f5fe", "border": "2px solid #01579b"}
	toolNodeStyle  = map[string]any{"background": "#f3e5f5", "border": "2px solid #4a148c"}

	eventSuccessStyle = map[string]any{"background": "#e8f5e8", "border": "2px solid #2e7d32", "minWidth": "120px"}
	eventFailureStyle = map[string]any{"background": "#ffebee", "border": "2px solid #f44336", "minWidth": "120px"}
)

// Analyze synthesizes a flow graph from a run's event log. It is pure:
// no I/O, no dependence on anything but its arguments (node and finding
// ids aside, which are positional and random respectively).
func Analyze(run model.RunSummary, events []model.Event) model.DiagramAnalysis {
	g := collect(events)

	nodes := make([]model.FlowNode, 0, len(g.agentOrder)+len(g.toolOrder)+len(events))
	nodes = append(nodes, agentTier(g)...)
	nodes = append(nodes, toolTier(g)...)
	nodes = append(nodes, eventTier(events)...)

	return model.DiagramAnalysis{
		Nodes:         nodes,
		Edges:         buildEdges(g, events),
		Optimizations: findOptimizations(events),
		Summary: fmt.Sprintf("Analyzed %d events across %d agents and %d tools",
			len(events), len(g.agentOrder), len(g.toolOrder)),
		TotalEvents:       len(events),
		AnalysisTimestamp: time.Now().UTC(),
	}
}

// graph is the intermediate grouping of events by agent and tool,
// preserving first-seen order for stable layout.
type graph struct {
	agentOrder []string
	agentEvts  map[string][]model.Event

	toolOrder []string
	toolEvts  map[string][]model.Event

	// (timestamp, agent) pairs in input order, for transition edges.
	agentSeq []string
	// tool_call events in input order, for usage edges.
	toolCalls []model.Event
}

func collect(events []model.Event) graph {
	g := graph{
		agentEvts: map[string][]model.Event{},
		toolEvts:  map[string][]model.Event{},
	}
	for _, event := range events {
		if event.AgentType != "" {
			name := string(event.AgentType)
			if _, seen := g.agentEvts[name]; !seen {
				g.agentOrder = append(g.agentOrder, name)
			}
			g.agentEvts[name] = append(g.agentEvts[name], event)
			g.agentSeq = append(g.agentSeq, name)
		}
		if event.ToolCall != nil {
			name := event.ToolCall.ToolName
			if _, seen := g.toolEvts[name]; !seen {
				g.toolOrder = append(g.toolOrder, name)
			}
			g.toolEvts[name] = append(g.toolEvts[name], event)
			g.toolCalls = append(g.toolCalls, event)
		}
	}
	return g
}

func agentTier(g graph) []model.FlowNode {
	nodes := make([]model.FlowNode, 0, len(g.agentOrder))
	x := 0
	for _, name := range g.agentOrder {
		evts := g.agentEvts[name]
		details := make([]map[string]any, 0, len(evts))
		for _, event := range evts {
			info := map[string]any{
				"type":        string(event.Type),
				"step":        stepLabel(event),
				"timestamp":   event.Timestamp.Format(time.RFC3339Nano),
				"duration_ms": durationValue(event),
			}
			if event.ToolCall != nil {
				info["tool"] = event.ToolCall.ToolName
			}
			if event.LLMCall != nil {
				info["model"] = modelLabel(event.LLMCall.Model)
			}
			if success, ok := event.Success(); ok {
				info["success"] = success
			}
			details = append(details, info)
		}
		nodes = append(nodes, model.FlowNode{
			ID:       "agent_" + name,
			Type:     model.NodeTypeAgent,
			Position: model.Position{X: float64(x), Y: agentTierY},
			Data: map[string]any{
				"label":       titleCase(name),
				"event_count": len(evts),
				"agent_type":  name,
				"events":      details,
			},
			Style: agentNodeStyle,
		})
		x += agentSpacing
	}
	return nodes
}

func toolTier(g graph) []model.FlowNode {
	nodes := make([]model.FlowNode, 0, len(g.toolOrder))
	x := 0
	for _, name := range g.toolOrder {
		calls := g.toolEvts[name]
		details := make([]map[string]any, 0, len(calls))
		for _, call := range calls {
			info := map[string]any{
				"timestamp":   call.Timestamp.Format(time.RFC3339Nano),
				"duration_ms": durationValue(call),
				"success":     call.ToolCall.Success,
				"agent":       agentLabel(call.AgentType),
			}
			if call.ToolCall.ErrorMessage != "" {
				info["error"] = call.ToolCall.ErrorMessage
			}
			details = append(details, info)
		}
		nodes = append(nodes, model.FlowNode{
			ID:       "tool_" + name,
			Type:     model.NodeTypeTool,
			Position: model.Position{X: float64(x), Y: toolTierY},
			Data: map[string]any{
				"label":      name,
				"call_count": len(calls),
				"tool_name":  name,
				"calls":      details,
			},
			Style: toolNodeStyle,
		})
		x += toolSpacing
	}
	return nodes
}

func eventTier(events []model.Event) []model.FlowNode {
	nodes := make([]model.FlowNode, 0, len(events))
	for i, event := range events {
		data := map[string]any{
			"label":       string(event.Type),
			"event_type":  string(event.Type),
			"step_name":   stepLabel(event),
			"timestamp":   event.Timestamp.Format(time.RFC3339Nano),
			"duration_ms": durationValue(event),
			"agent_type":  agentLabel(event.AgentType),
		}
		switch {
		case event.ToolCall != nil:
			data["tool_name"] = event.ToolCall.ToolName
			data["success"] = event.ToolCall.Success
			data["error_message"] = event.ToolCall.ErrorMessage
		case event.LLMCall != nil:
			data["model"] = modelLabel(event.LLMCall.Model)
		case event.Delegation != nil:
			data["from_agent"] = string(event.Delegation.FromAgent)
			data["to_agent"] = string(event.Delegation.ToAgent)
		case event.AgentOutput != nil:
			data["success"] = event.AgentOutput.Success
			data["error_message"] = event.AgentOutput.ErrorMessage
		}

		row := i / eventsPerRow
		col := i % eventsPerRow
		success, ok := event.Success()
		style := eventSuccessStyle
		if ok && !success {
			style = eventFailureStyle
		}
		nodes = append(nodes, model.FlowNode{
			ID:       fmt.Sprintf("event_%d", i),
			Type:     model.NodeTypeEvent,
			Position: model.Position{X: float64(col * eventSpacingX), Y: float64(eventStartY + row*eventSpacingY)},
			Data:     data,
			Style:    style,
		})
	}
	return nodes
}

// buildEdges emits the four edge kinds in fixed order, all numbered from
// one shared counter so ids stay stable across the whole graph.
func buildEdges(g graph, events []model.Event) []model.FlowEdge {
	var edges []model.FlowEdge
	edgeID := 0
	next := func() string {
		id := fmt.Sprintf("edge_%d", edgeID)
		edgeID++
		return id
	}

	// Agent transitions: consecutive distinct agents in event order.
	for i := 0; i+1 < len(g.agentSeq); i++ {
		if g.agentSeq[i] == g.agentSeq[i+1] {
			continue
		}
		edges = append(edges, model.FlowEdge{
			ID:     next(),
			Source: "agent_" + g.agentSeq[i],
			Target: "agent_" + g.agentSeq[i+1],
			Type:   "smoothstep",
			Data:   map[string]any{"type": model.EdgeAgentTransition},
		})
	}

	for _, call := range g.toolCalls {
		if call.AgentType == "" {
			continue
		}
		edges = append(edges, model.FlowEdge{
			ID:     next(),
			Source: "agent_" + string(call.AgentType),
			Target: "tool_" + call.ToolCall.ToolName,
			Type:   "straight",
			Data:   map[string]any{"type": model.EdgeToolUsage},
		})
	}

	for i, event := range events {
		eventID := fmt.Sprintf("event_%d", i)
		if event.AgentType != "" {
			edges = append(edges, model.FlowEdge{
				ID:     next(),
				Source: "agent_" + string(event.AgentType),
				Target: eventID,
				Type:   "straight",
				Data:   map[string]any{"type": model.EdgeEventFlow},
			})
		}
		if event.ToolCall != nil {
			edges = append(edges, model.FlowEdge{
				ID:     next(),
				Source: eventID,
				Target: "tool_" + event.ToolCall.ToolName,
				Type:   "straight",
				Data:   map[string]any{"type": model.EdgeEventTool},
			})
		}
	}
	return edges
}

func stepLabel(event model.Event) string {
	if event.StepName != "" {
		return event.StepName
	}
	return string(event.Type) + "_step"
}

func agentLabel(agent model.AgentType) string {
	if agent == "" {
		return string(model.AgentOrchestrator)
	}
	return string(agent)
}

const defaultModelLabel = "claude-3-7-sonnet-latest"

func modelLabel(name string) string {
	if name == "" {
		return defaultModelLabel
	}
	return name
}

func durationValue(event model.Event) any {
	if event.DurationMs == nil {
		return nil
	}
	return *event.DurationMs
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
