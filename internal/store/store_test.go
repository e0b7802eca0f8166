package store_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

func durPtr(ms float64) *float64 { return &ms }

func TestStartRun_InitialState(t *testing.T) {
	s := store.New()
	run := s.StartRun("r1", "t1")

	assert.Equal(t, "r1", run.RunID)
	assert.Equal(t, "t1", run.ThreadID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Nil(t, run.EndTime)
	assert.Nil(t, run.TotalDurationMs)
	assert.Zero(t, run.TotalLLMCalls)
	assert.Zero(t, run.ErrorCount)
	assert.Empty(t, run.AgentEvents)
}

func TestStartRun_OverwriteKeepsGlobalLog(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")
	s.AddEvent(model.NewStepLogEvent("r1", model.EventMeta{}, model.StepLogPayload{StepDescription: "first generation"}))

	// Restarting the same id resets the summary but not the log.
	run := s.StartRun("r1", "")
	assert.Empty(t, run.AgentEvents)
	assert.Zero(t, run.TotalToolCalls)
	assert.Len(t, s.GetRunEvents("r1"), 1, "orphaned events stay visible by id")
}

func TestEndRun_UnknownID(t *testing.T) {
	s := store.New()
	s.StartRun("known", "")

	_, err := s.EndRun("unknown", model.RunStatusCompleted)
	require.ErrorIs(t, err, store.ErrNotFound)

	// No mutation on miss.
	run, err := s.GetRun("known")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)
}

func TestEndRun_RejectsNonTerminalStatus(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")

	_, err := s.EndRun("r1", model.RunStatusRunning)
	require.Error(t, err)

	// A terminal run must never reopen to running.
	_, err = s.EndRun("r1", model.RunStatusCompleted)
	require.NoError(t, err)
	_, err = s.EndRun("r1", model.RunStatusRunning)
	require.Error(t, err)

	run, err := s.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.EndTime)
}

func TestEndRun_StampsDuration(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")
	run, err := s.EndRun("r1", model.RunStatusFailed)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.TotalDurationMs)
	assert.GreaterOrEqual(t, *run.TotalDurationMs, 0.0)
	assert.True(t, run.Status.Terminal())
}

// Counters must equal the per-kind event counts after every single append,
// quantified over random event sequences.
func TestAddEvent_CountersMatchLog(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		s := store.New()
		runID := fmt.Sprintf("run-%d", trial)
		s.StartRun(runID, "")

		var wantLLM, wantTool, wantDeleg, wantErr int
		n := 1 + rng.Intn(40)
		for i := 0; i < n; i++ {
			switch rng.Intn(5) {
			case 0:
				s.AddEvent(model.NewLLMCallEvent(runID, model.EventMeta{}, model.LLMCallPayload{Model: "m"}))
				wantLLM++
			case 1:
				success := rng.Intn(2) == 0
				s.AddEvent(model.NewToolCallEvent(runID, model.EventMeta{}, model.ToolCallPayload{ToolName: "search_kb", Success: success}))
				wantTool++
				if !success {
					wantErr++
				}
			case 2:
				ev, err := model.NewDelegationEvent(runID, model.EventMeta{}, model.DelegationPayload{
					FromAgent: model.AgentOrchestrator, ToAgent: model.AgentSummarizer, DelegationReason: "test",
				})
				require.NoError(t, err)
				s.AddEvent(ev)
				wantDeleg++
			case 3:
				s.AddEvent(model.NewStepLogEvent(runID, model.EventMeta{}, model.StepLogPayload{StepDescription: "step"}))
			case 4:
				success := rng.Intn(2) == 0
				s.AddEvent(model.NewAgentOutputEvent(runID, model.EventMeta{}, model.AgentOutputPayload{
					OutputType: "response", OutputContent: "c", Success: success,
				}))
				if !success {
					wantErr++
				}
			}

			run, err := s.GetRun(runID)
			require.NoError(t, err)
			assert.Equal(t, wantLLM, run.TotalLLMCalls)
			assert.Equal(t, wantTool, run.TotalToolCalls)
			assert.Equal(t, wantDeleg, run.TotalDelegations)
			assert.Equal(t, wantErr, run.ErrorCount)
			assert.Len(t, run.AgentEvents, i+1)
		}
	}
}

func TestGetRunEvents_OrderAndFiltering(t *testing.T) {
	s := store.New()
	s.StartRun("a", "")
	s.StartRun("b", "")

	for i := 0; i < 6; i++ {
		runID := "a"
		if i%2 == 1 {
			runID = "b"
		}
		s.AddEvent(model.NewStepLogEvent(runID, model.EventMeta{}, model.StepLogPayload{
			StepDescription: fmt.Sprintf("step-%d", i),
		}))
	}

	got := s.GetRunEvents("a")
	require.Len(t, got, 3)
	assert.Equal(t, "step-0", got[0].StepLog.StepDescription)
	assert.Equal(t, "step-2", got[1].StepLog.StepDescription)
	assert.Equal(t, "step-4", got[2].StepLog.StepDescription)

	// Events keep accruing by id after the run ends.
	_, err := s.EndRun("a", model.RunStatusCompleted)
	require.NoError(t, err)
	s.AddEvent(model.NewStepLogEvent("a", model.EventMeta{}, model.StepLogPayload{StepDescription: "late"}))
	assert.Len(t, s.GetRunEvents("a"), 4)
}

func TestAddEvent_UnknownRunGlobalLogOnly(t *testing.T) {
	s := store.New()
	s.AddEvent(model.NewStepLogEvent("ghost", model.EventMeta{}, model.StepLogPayload{StepDescription: "no run"}))

	assert.Equal(t, 1, s.EventCount())
	assert.Len(t, s.GetRunEvents("ghost"), 1)
	_, err := s.GetRun("ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRun_KeepsLog(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")
	s.AddEvent(model.NewStepLogEvent("r1", model.EventMeta{}, model.StepLogPayload{StepDescription: "s"}))

	require.NoError(t, s.DeleteRun("r1"))
	assert.ErrorIs(t, s.DeleteRun("r1"), store.ErrNotFound)

	_, err := s.GetRun("r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, s.GetRunEvents("r1"), 1, "log is append-only")
}

func TestReturnedSummariesAreCopies(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")
	s.AddEvent(model.NewStepLogEvent("r1", model.EventMeta{}, model.StepLogPayload{StepDescription: "s"}))

	run, err := s.GetRun("r1")
	require.NoError(t, err)
	run.AgentEvents[0].RunID = "tampered"
	run.TotalToolCalls = 99

	fresh, err := s.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", fresh.AgentEvents[0].RunID)
	assert.Zero(t, fresh.TotalToolCalls)
}

// Scenario from the system contract: ten tool calls, one failing slow one.
func TestScenario_ToolCallRun(t *testing.T) {
	s := store.New()
	s.StartRun("R1", "")

	s.AddEvent(model.NewToolCallEvent("R1", model.EventMeta{
		AgentType: model.AgentOrchestrator, DurationMs: durPtr(6000),
	}, model.ToolCallPayload{ToolName: "search_kb", Success: false, ErrorMessage: "timeout"}))

	for i := 0; i < 9; i++ {
		s.AddEvent(model.NewToolCallEvent("R1", model.EventMeta{
			AgentType: model.AgentOrchestrator, DurationMs: durPtr(100),
		}, model.ToolCallPayload{ToolName: "search_kb", Success: true}))
	}

	run, err := s.EndRun("R1", model.RunStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 10, run.TotalToolCalls)
	assert.Equal(t, 1, run.ErrorCount)
}

func TestConcurrentRuns(t *testing.T) {
	s := store.New()
	const runs = 8
	const perRun = 50

	var wg sync.WaitGroup
	for r := 0; r < runs; r++ {
		runID := fmt.Sprintf("run-%d", r)
		s.StartRun(runID, "")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perRun; i++ {
				s.AddEvent(model.NewToolCallEvent(runID, model.EventMeta{}, model.ToolCallPayload{
					ToolName: "search_kb", Success: true,
				}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, runs*perRun, s.EventCount())
	for r := 0; r < runs; r++ {
		run, err := s.GetRun(fmt.Sprintf("run-%d", r))
		require.NoError(t, err)
		assert.Equal(t, perRun, run.TotalToolCalls)
		assert.Len(t, run.AgentEvents, perRun)
	}
}

func TestClear(t *testing.T) {
	s := store.New()
	s.StartRun("r1", "")
	s.AddEvent(model.NewStepLogEvent("r1", model.EventMeta{}, model.StepLogPayload{StepDescription: "s"}))

	s.Clear()
	assert.Zero(t, s.EventCount())
	assert.Zero(t, s.RunCount())
	assert.Empty(t, s.AllRuns())
}
