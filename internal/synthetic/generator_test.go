package synthetic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

func TestGenerateRun_Shape(t *testing.T) {
	s := store.New()
	g := New(s, 42)

	run := g.GenerateRun(Options{IncludeErrors: true, IncludeDelegation: true})

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.TotalDurationMs)
	assert.InDelta(t, 2*time.Minute.Seconds()*1000, *run.TotalDurationMs, 1, "default span is two minutes")

	events := s.GetRunEvents(run.RunID)
	// Between 8 and 20 generated events plus the run_end marker.
	assert.GreaterOrEqual(t, len(events), 9)
	assert.LessOrEqual(t, len(events), 21)
	assert.Equal(t, model.EventRunEnd, events[len(events)-1].Type)

	// Counters agree with the event log.
	var llm, tool, deleg, errs int
	for _, ev := range events {
		switch ev.Type {
		case model.EventLLMCall:
			llm++
		case model.EventToolCall:
			tool++
		case model.EventDelegation:
			deleg++
		}
		if success, ok := ev.Success(); ok && !success {
			errs++
		}
	}
	assert.Equal(t, llm, run.TotalLLMCalls)
	assert.Equal(t, tool, run.TotalToolCalls)
	assert.Equal(t, deleg, run.TotalDelegations)
	assert.Equal(t, errs, run.ErrorCount)
	assert.LessOrEqual(t, deleg, 1, "at most one delegation per run")
}

func TestGenerateRun_SeededDeterminism(t *testing.T) {
	opts := Options{RunID: "fixed", EventCount: 12, IncludeErrors: true, IncludeDelegation: true}

	s1 := store.New()
	run1 := New(s1, 7).GenerateRun(opts)
	s2 := store.New()
	run2 := New(s2, 7).GenerateRun(opts)

	events1 := s1.GetRunEvents("fixed")
	events2 := s2.GetRunEvents("fixed")
	require.Equal(t, len(events1), len(events2))
	for i := range events1 {
		assert.Equal(t, events1[i].Type, events2[i].Type, "event %d kind differs", i)
		assert.Equal(t, events1[i].StepName, events2[i].StepName, "event %d step differs", i)
		assert.Equal(t, events1[i].AgentType, events2[i].AgentType, "event %d agent differs", i)
	}
	assert.Equal(t, run1.TotalToolCalls, run2.TotalToolCalls)
	assert.Equal(t, run1.ErrorCount, run2.ErrorCount)
}

func TestGenerateRun_ExplicitOptions(t *testing.T) {
	s := store.New()
	g := New(s, 1)

	run := g.GenerateRun(Options{
		RunID:      "custom-run",
		ThreadID:   "thread-7",
		Duration:   30 * time.Second,
		EventCount: 10,
	})

	assert.Equal(t, "custom-run", run.RunID)
	assert.Equal(t, "thread-7", run.ThreadID)
	assert.InDelta(t, 30_000, *run.TotalDurationMs, 1)
	assert.Len(t, s.GetRunEvents("custom-run"), 11)

	// Errors disabled: every tool call must succeed.
	for _, ev := range s.GetRunEvents("custom-run") {
		if ev.Type == model.EventToolCall {
			assert.True(t, ev.ToolCall.Success)
		}
	}
	assert.Zero(t, run.ErrorCount)
}

func TestGenerateRun_NoSelfDelegation(t *testing.T) {
	s := store.New()
	g := New(s, 99)

	for i := 0; i < 20; i++ {
		run := g.GenerateRun(Options{IncludeDelegation: true, EventCount: 15})
		for _, ev := range s.GetRunEvents(run.RunID) {
			if ev.Type == model.EventDelegation {
				assert.NotEqual(t, ev.Delegation.FromAgent, ev.Delegation.ToAgent)
			}
		}
	}
}

func TestGenerateRuns_DistinctIDs(t *testing.T) {
	s := store.New()
	g := New(s, 3)

	runs := g.GenerateRuns(5, Options{EventCount: 8})
	require.Len(t, runs, 5)

	seen := map[string]bool{}
	for _, run := range runs {
		assert.False(t, seen[run.RunID], "run ids must be unique")
		seen[run.RunID] = true
	}
	assert.Equal(t, 5, s.RunCount())
}

func TestGenerateRun_TimestampsAdvance(t *testing.T) {
	s := store.New()
	g := New(s, 12)

	run := g.GenerateRun(Options{EventCount: 10})
	events := s.GetRunEvents(run.RunID)
	events = events[:len(events)-1] // run_end is pinned to the span end
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"event %d timestamp went backwards", i)
	}
}
