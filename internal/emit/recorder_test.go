package emit_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

func newRecorder() (*emit.Recorder, *store.Store) {
	s := store.New()
	return emit.NewRecorder(s, slog.New(slog.DiscardHandler)), s
}

func TestStartRun_GeneratesIDAndBindsContext(t *testing.T) {
	r, s := newRecorder()

	ctx, run := r.StartRun(context.Background(), "", "thread-9")
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, run.RunID, emit.RunIDFromContext(ctx))
	assert.Equal(t, "thread-9", emit.ThreadIDFromContext(ctx))

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
}

func TestLog_SilentNoOpWithoutRun(t *testing.T) {
	r, s := newRecorder()
	ctx := context.Background()

	r.LogStep(ctx, "planning", "no run bound", nil)
	r.LogAgentOutput(ctx, "response", "content", true, "", nil)
	r.LogLLMCall(ctx, emit.LLMCall{Model: "m"})
	r.EndRun(ctx, model.RunStatusCompleted)

	assert.Zero(t, s.EventCount())
	assert.Zero(t, s.RunCount())
}

func TestLogStep_UsesAmbientAgent(t *testing.T) {
	r, s := newRecorder()
	ctx, run := r.StartRun(context.Background(), "r1", "")
	ctx = emit.WithAgent(ctx, model.AgentSummarizer)

	r.LogStep(ctx, "analysis_start", "starting", map[string]any{"depth": 2})

	events := s.GetRunEvents(run.RunID)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventStepLog, events[0].Type)
	assert.Equal(t, model.AgentSummarizer, events[0].AgentType)
	assert.Equal(t, "analysis_start", events[0].StepName)
}

func TestLogLLMCall_TokensAndExcerpts(t *testing.T) {
	r, s := newRecorder()
	ctx, _ := r.StartRun(context.Background(), "r1", "")

	pt, ct := 120, 40
	longPrompt := strings.Repeat("p", 900)
	r.LogLLMCall(ctx, emit.LLMCall{
		Model:            "claude-sonnet",
		Prompt:           longPrompt,
		Response:         "short",
		DurationMs:       321,
		PromptTokens:     &pt,
		CompletionTokens: &ct,
	})

	events := s.GetRunEvents("r1")
	require.Len(t, events, 1)
	p := events[0].LLMCall
	require.NotNil(t, p)
	require.NotNil(t, p.TotalTokens)
	assert.Equal(t, 160, *p.TotalTokens)

	excerpt, _ := events[0].Metadata["prompt"].(string)
	assert.Len(t, excerpt, 503, "500-char budget plus ellipsis marker")
	assert.True(t, strings.HasSuffix(excerpt, "..."))

	run, err := s.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.TotalLLMCalls)
}

func TestTool_SuccessRecordsSnapshots(t *testing.T) {
	r, s := newRecorder()
	ctx, _ := r.StartRun(context.Background(), "r1", "")
	ctx = emit.WithAgent(ctx, model.AgentOrchestrator)

	out, err := emit.Tool(ctx, r, "search_kb", map[string]any{"query": "setup"}, func(context.Context) (string, error) {
		return strings.Repeat("x", 1000), nil
	})
	require.NoError(t, err)
	assert.Len(t, out, 1000, "wrapper must not alter the result")

	events := s.GetRunEvents("r1")
	require.Len(t, events, 1)
	tc := events[0].ToolCall
	require.NotNil(t, tc)
	assert.True(t, tc.Success)
	assert.Equal(t, model.AgentOrchestrator, events[0].AgentType)
	assert.Equal(t, "tool_search_kb", events[0].StepName)
	require.NotNil(t, events[0].DurationMs)

	snap, _ := tc.ToolOutput["result"].(string)
	assert.Len(t, snap, 403, "400-char budget plus ellipsis marker")
}

func TestTool_FailureReRaisesUnchanged(t *testing.T) {
	r, s := newRecorder()
	ctx, _ := r.StartRun(context.Background(), "r1", "")

	sentinel := errors.New("kb unreachable")
	_, err := emit.Tool(ctx, r, "search_kb", nil, func(context.Context) (string, error) {
		return "", sentinel
	})
	require.ErrorIs(t, err, sentinel, "original error must propagate unchanged")

	events := s.GetRunEvents("r1")
	require.Len(t, events, 1)
	tc := events[0].ToolCall
	require.NotNil(t, tc)
	assert.False(t, tc.Success)
	assert.Equal(t, "kb unreachable", tc.ErrorMessage)

	run, rerr := s.GetRun("r1")
	require.NoError(t, rerr)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestTool_NoRunRunsBare(t *testing.T) {
	r, s := newRecorder()

	out, err := emit.Tool(context.Background(), r, "search_kb", nil, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	assert.Zero(t, s.EventCount())
}

func TestContextIsolation(t *testing.T) {
	r, s := newRecorder()

	ctxA, _ := r.StartRun(context.Background(), "run-a", "")
	ctxB, _ := r.StartRun(context.Background(), "run-b", "")
	ctxA = emit.WithAgent(ctxA, model.AgentOrchestrator)
	ctxB = emit.WithAgent(ctxB, model.AgentDiagrammer)

	r.LogStep(ctxA, "a-step", "from a", nil)
	r.LogStep(ctxB, "b-step", "from b", nil)

	a := s.GetRunEvents("run-a")
	require.Len(t, a, 1)
	assert.Equal(t, model.AgentOrchestrator, a[0].AgentType)

	b := s.GetRunEvents("run-b")
	require.Len(t, b, 1)
	assert.Equal(t, model.AgentDiagrammer, b[0].AgentType)
}

func TestLogDelegation_DropsSelfDelegation(t *testing.T) {
	r, s := newRecorder()
	ctx, _ := r.StartRun(context.Background(), "r1", "")

	r.LogDelegation(ctx, model.AgentOrchestrator, model.AgentOrchestrator, "loop", nil, nil)
	assert.Zero(t, len(s.GetRunEvents("r1")), "invalid delegation must not reach the log")

	r.LogDelegation(ctx, model.AgentOrchestrator, model.AgentSummarizer, "analysis", nil, nil)
	events := s.GetRunEvents("r1")
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDelegation, events[0].Type)
}
