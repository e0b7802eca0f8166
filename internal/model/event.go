package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of a telemetry event.
type EventType string

const (
	EventRunStart    EventType = "run_start"
	EventRunEnd      EventType = "run_end"
	EventLLMCall     EventType = "llm_call"
	EventToolCall    EventType = "tool_call"
	EventDelegation  EventType = "delegation"
	EventStepLog     EventType = "step_log"
	EventAgentOutput EventType = "agent_output"
)

// AgentType identifies an agent role within a run. The three built-in
// roles are listed below; the event model accepts any non-empty value.
type AgentType string

const (
	AgentOrchestrator AgentType = "orchestrator"
	AgentSummarizer   AgentType = "summarizer"
	AgentDiagrammer   AgentType = "diagrammer"
)

// Event is one immutable entry in the append-only telemetry log.
//
// Event is a tagged variant: Type selects which of the payload pointers
// is non-nil, and consumers switch on Type instead of probing fields.
// RunStart and RunEnd carry no payload. Construct events through the
// New*Event constructors, which stamp the ID, tag, and UTC timestamp.
type Event struct {
	ID         uuid.UUID      `json:"event_id"`
	Type       EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id"`
	ThreadID   string         `json:"thread_id,omitempty"`
	AgentType  AgentType      `json:"agent_type,omitempty"`
	StepName   string         `json:"step_name,omitempty"`
	DurationMs *float64       `json:"duration_ms,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	LLMCall     *LLMCallPayload     `json:"-"`
	ToolCall    *ToolCallPayload    `json:"-"`
	Delegation  *DelegationPayload  `json:"-"`
	StepLog     *StepLogPayload     `json:"-"`
	AgentOutput *AgentOutputPayload `json:"-"`
}

// LLMCallPayload carries the variant fields of an llm_call event.
type LLMCallPayload struct {
	Model            string   `json:"model"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseTimeMs   *float64 `json:"response_time_ms,omitempty"`
}

// ToolCallPayload carries the variant fields of a tool_call event.
type ToolCallPayload struct {
	ToolName     string         `json:"tool_name"`
	ToolInput    map[string]any `json:"tool_input"`
	ToolOutput   map[string]any `json:"tool_output,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// DelegationPayload carries the variant fields of a delegation event.
type DelegationPayload struct {
	FromAgent        AgentType      `json:"from_agent"`
	ToAgent          AgentType      `json:"to_agent"`
	DelegationReason string         `json:"delegation_reason"`
	InputData        map[string]any `json:"input_data"`
	OutputData       map[string]any `json:"output_data,omitempty"`
}

// StepLogPayload carries the variant fields of a step_log event.
type StepLogPayload struct {
	StepDescription string         `json:"step_description"`
	StepData        map[string]any `json:"step_data"`
}

// AgentOutputPayload carries the variant fields of an agent_output event.
type AgentOutputPayload struct {
	OutputType     string         `json:"output_type"`
	OutputContent  string         `json:"output_content"`
	OutputMetadata map[string]any `json:"output_metadata"`
	Success        bool           `json:"success"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// EventMeta holds the optional common fields shared by every variant.
type EventMeta struct {
	ThreadID   string
	AgentType  AgentType
	StepName   string
	DurationMs *float64
	Metadata   map[string]any
}

func newEvent(eventType EventType, runID string, meta EventMeta) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		RunID:      runID,
		ThreadID:   meta.ThreadID,
		AgentType:  meta.AgentType,
		StepName:   meta.StepName,
		DurationMs: meta.DurationMs,
		Metadata:   meta.Metadata,
	}
}

// NewRunStartEvent creates a run_start event.
func NewRunStartEvent(runID string, meta EventMeta) Event {
	return newEvent(EventRunStart, runID, meta)
}

// NewRunEndEvent creates a run_end event.
func NewRunEndEvent(runID string, meta EventMeta) Event {
	return newEvent(EventRunEnd, runID, meta)
}

// NewLLMCallEvent creates an llm_call event.
func NewLLMCallEvent(runID string, meta EventMeta, p LLMCallPayload) Event {
	e := newEvent(EventLLMCall, runID, meta)
	e.LLMCall = &p
	return e
}

// NewToolCallEvent creates a tool_call event. A nil input snapshot is
// normalized to an empty map so the wire shape always carries tool_input.
func NewToolCallEvent(runID string, meta EventMeta, p ToolCallPayload) Event {
	if p.ToolInput == nil {
		p.ToolInput = map[string]any{}
	}
	e := newEvent(EventToolCall, runID, meta)
	e.ToolCall = &p
	return e
}

// NewDelegationEvent creates a delegation event. Delegating from an agent
// to itself is an invariant violation and is rejected at construction.
func NewDelegationEvent(runID string, meta EventMeta, p DelegationPayload) (Event, error) {
	if p.FromAgent == p.ToAgent {
		return Event{}, fmt.Errorf("model: delegation from %q to itself", p.FromAgent)
	}
	if p.InputData == nil {
		p.InputData = map[string]any{}
	}
	e := newEvent(EventDelegation, runID, meta)
	e.Delegation = &p
	return e, nil
}

// NewStepLogEvent creates a step_log event.
func NewStepLogEvent(runID string, meta EventMeta, p StepLogPayload) Event {
	if p.StepData == nil {
		p.StepData = map[string]any{}
	}
	e := newEvent(EventStepLog, runID, meta)
	e.StepLog = &p
	return e
}

// NewAgentOutputEvent creates an agent_output event.
func NewAgentOutputEvent(runID string, meta EventMeta, p AgentOutputPayload) Event {
	if p.OutputMetadata == nil {
		p.OutputMetadata = map[string]any{}
	}
	e := newEvent(EventAgentOutput, runID, meta)
	e.AgentOutput = &p
	return e
}

// Success reports the success flag for the variants that carry one
// (tool_call and agent_output). ok is false for every other kind.
func (e Event) Success() (success, ok bool) {
	switch e.Type {
	case EventToolCall:
		if e.ToolCall != nil {
			return e.ToolCall.Success, true
		}
	case EventAgentOutput:
		if e.AgentOutput != nil {
			return e.AgentOutput.Success, true
		}
	}
	return false, false
}

// eventJSON is the flattened wire form of Event. Variant payload fields
// sit at the top level next to the common fields, matching the field
// names consumers of the JSON API already depend on.
type eventJSON struct {
	ID         uuid.UUID      `json:"event_id"`
	Type       EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id"`
	ThreadID   string         `json:"thread_id,omitempty"`
	AgentType  AgentType      `json:"agent_type,omitempty"`
	StepName   string         `json:"step_name,omitempty"`
	DurationMs *float64       `json:"duration_ms,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// llm_call
	Model            string   `json:"model,omitempty"`
	PromptTokens     *int     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int     `json:"completion_tokens,omitempty"`
	TotalTokens      *int     `json:"total_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseTimeMs   *float64 `json:"response_time_ms,omitempty"`

	// tool_call
	ToolName   string         `json:"tool_name,omitempty"`
	ToolInput  map[string]any `json:"tool_input,omitempty"`
	ToolOutput map[string]any `json:"tool_output,omitempty"`

	// delegation
	FromAgent        AgentType      `json:"from_agent,omitempty"`
	ToAgent          AgentType      `json:"to_agent,omitempty"`
	DelegationReason string         `json:"delegation_reason,omitempty"`
	InputData        map[string]any `json:"input_data,omitempty"`
	OutputData       map[string]any `json:"output_data,omitempty"`

	// step_log
	StepDescription string         `json:"step_description,omitempty"`
	StepData        map[string]any `json:"step_data,omitempty"`

	// agent_output
	OutputType     string         `json:"output_type,omitempty"`
	OutputContent  string         `json:"output_content,omitempty"`
	OutputMetadata map[string]any `json:"output_metadata,omitempty"`

	// tool_call and agent_output
	Success      *bool  `json:"success,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// MarshalJSON flattens the active variant payload into the top-level object.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:         e.ID,
		Type:       e.Type,
		Timestamp:  e.Timestamp,
		RunID:      e.RunID,
		ThreadID:   e.ThreadID,
		AgentType:  e.AgentType,
		StepName:   e.StepName,
		DurationMs: e.DurationMs,
		Metadata:   e.Metadata,
	}
	switch {
	case e.LLMCall != nil:
		p := e.LLMCall
		out.Model = p.Model
		out.PromptTokens = p.PromptTokens
		out.CompletionTokens = p.CompletionTokens
		out.TotalTokens = p.TotalTokens
		out.Temperature = p.Temperature
		out.ResponseTimeMs = p.ResponseTimeMs
	case e.ToolCall != nil:
		p := e.ToolCall
		out.ToolName = p.ToolName
		out.ToolInput = p.ToolInput
		out.ToolOutput = p.ToolOutput
		out.Success = &p.Success
		out.ErrorMessage = p.ErrorMessage
	case e.Delegation != nil:
		p := e.Delegation
		out.FromAgent = p.FromAgent
		out.ToAgent = p.ToAgent
		out.DelegationReason = p.DelegationReason
		out.InputData = p.InputData
		out.OutputData = p.OutputData
	case e.StepLog != nil:
		p := e.StepLog
		out.StepDescription = p.StepDescription
		out.StepData = p.StepData
	case e.AgentOutput != nil:
		p := e.AgentOutput
		out.OutputType = p.OutputType
		out.OutputContent = p.OutputContent
		out.OutputMetadata = p.OutputMetadata
		out.Success = &p.Success
		out.ErrorMessage = p.ErrorMessage
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs the tagged variant from the flattened wire form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event{
		ID:         in.ID,
		Type:       in.Type,
		Timestamp:  in.Timestamp,
		RunID:      in.RunID,
		ThreadID:   in.ThreadID,
		AgentType:  in.AgentType,
		StepName:   in.StepName,
		DurationMs: in.DurationMs,
		Metadata:   in.Metadata,
	}
	switch in.Type {
	case EventLLMCall:
		e.LLMCall = &LLMCallPayload{
			Model:            in.Model,
			PromptTokens:     in.PromptTokens,
			CompletionTokens: in.CompletionTokens,
			TotalTokens:      in.TotalTokens,
			Temperature:      in.Temperature,
			ResponseTimeMs:   in.ResponseTimeMs,
		}
	case EventToolCall:
		p := &ToolCallPayload{
			ToolName:     in.ToolName,
			ToolInput:    in.ToolInput,
			ToolOutput:   in.ToolOutput,
			ErrorMessage: in.ErrorMessage,
		}
		if in.Success != nil {
			p.Success = *in.Success
		}
		if p.ToolInput == nil {
			p.ToolInput = map[string]any{}
		}
		e.ToolCall = p
	case EventDelegation:
		p := &DelegationPayload{
			FromAgent:        in.FromAgent,
			ToAgent:          in.ToAgent,
			DelegationReason: in.DelegationReason,
			InputData:        in.InputData,
			OutputData:       in.OutputData,
		}
		if p.FromAgent == p.ToAgent {
			return fmt.Errorf("model: delegation from %q to itself", p.FromAgent)
		}
		if p.InputData == nil {
			p.InputData = map[string]any{}
		}
		e.Delegation = p
	case EventStepLog:
		p := &StepLogPayload{
			StepDescription: in.StepDescription,
			StepData:        in.StepData,
		}
		if p.StepData == nil {
			p.StepData = map[string]any{}
		}
		e.StepLog = p
	case EventAgentOutput:
		p := &AgentOutputPayload{
			OutputType:     in.OutputType,
			OutputContent:  in.OutputContent,
			OutputMetadata: in.OutputMetadata,
			ErrorMessage:   in.ErrorMessage,
		}
		if in.Success != nil {
			p.Success = *in.Success
		}
		if p.OutputMetadata == nil {
			p.OutputMetadata = map[string]any{}
		}
		e.AgentOutput = p
	case EventRunStart, EventRunEnd:
		// No payload.
	default:
		return fmt.Errorf("model: unknown event_type %q", in.Type)
	}
	return nil
}
