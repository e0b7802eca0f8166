package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki/internal/model"
)

func TestNewDelegationEvent_RejectsSelfDelegation(t *testing.T) {
	_, err := model.NewDelegationEvent("r1", model.EventMeta{}, model.DelegationPayload{
		FromAgent:        model.AgentOrchestrator,
		ToAgent:          model.AgentOrchestrator,
		DelegationReason: "loop",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to itself")
}

func TestNewDelegationEvent_Valid(t *testing.T) {
	ev, err := model.NewDelegationEvent("r1", model.EventMeta{AgentType: model.AgentOrchestrator}, model.DelegationPayload{
		FromAgent:        model.AgentOrchestrator,
		ToAgent:          model.AgentSummarizer,
		DelegationReason: "analysis requested",
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventDelegation, ev.Type)
	assert.NotEqual(t, "", ev.ID.String())
	require.NotNil(t, ev.Delegation)
	assert.NotNil(t, ev.Delegation.InputData, "nil input snapshot should normalize to empty map")
}

func TestEventSuccess(t *testing.T) {
	failed := model.NewToolCallEvent("r1", model.EventMeta{}, model.ToolCallPayload{
		ToolName: "search_kb", Success: false, ErrorMessage: "boom",
	})
	ok := model.NewAgentOutputEvent("r1", model.EventMeta{}, model.AgentOutputPayload{
		OutputType: "response", OutputContent: "done", Success: true,
	})
	step := model.NewStepLogEvent("r1", model.EventMeta{}, model.StepLogPayload{StepDescription: "planning"})

	s, has := failed.Success()
	assert.True(t, has)
	assert.False(t, s)

	s, has = ok.Success()
	assert.True(t, has)
	assert.True(t, s)

	_, has = step.Success()
	assert.False(t, has, "step_log carries no success flag")
}

func TestEventJSON_FlattensVariantFields(t *testing.T) {
	ev := model.NewToolCallEvent("r1", model.EventMeta{
		AgentType: model.AgentOrchestrator,
		StepName:  "tool_search_kb",
	}, model.ToolCallPayload{
		ToolName:  "search_kb",
		ToolInput: map[string]any{"query": "how to configure"},
		Success:   true,
	})

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "tool_call", raw["event_type"])
	assert.Equal(t, "search_kb", raw["tool_name"], "payload fields must be top-level")
	assert.Equal(t, true, raw["success"])
	assert.NotContains(t, raw, "tool_output", "absent optional fields stay off the wire")

	var back model.Event
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.ToolCall)
	assert.Equal(t, "search_kb", back.ToolCall.ToolName)
	assert.Nil(t, back.LLMCall)
	assert.Nil(t, back.StepLog)
}

func TestEventJSON_UnknownTypeRejected(t *testing.T) {
	var ev model.Event
	err := json.Unmarshal([]byte(`{"event_type":"mystery","run_id":"r1"}`), &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event_type")
}

func TestRunRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     model.RunRequest
		wantErr bool
	}{
		{"valid", model.RunRequest{Query: "summarize the docs"}, false},
		{"empty query", model.RunRequest{}, true},
		{"run id too long", model.RunRequest{Query: "q", RunID: string(make([]byte, model.MaxRunIDLen+1))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
