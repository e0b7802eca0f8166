// Package synthetic generates plausible telemetry runs for demos and
// load testing. Generation is seeded: the same seed and options produce
// the same run shape.
package synthetic

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/store"
)

var (
	toolNames = []string{"search_kb", "analyze_content", "generate_summary", "create_diagram"}
	stepNames = []string{
		"query_received", "planning", "kb_search", "delegation_decision",
		"llm_processing", "response_generation", "analysis_complete",
	}
	agentTypes = []model.AgentType{model.AgentOrchestrator, model.AgentSummarizer, model.AgentDiagrammer}
	modelNames = []string{
		"anthropic:claude-3-7-sonnet-latest",
		"anthropic:claude-3-haiku-20240307",
		"openai:gpt-4o",
		"anthropic:claude-3-5-sonnet-20241022",
		"openai:gpt-4-turbo",
	}
	delegationReasons = []string{
		"Query requires specialized analysis",
		"Content needs summarization",
		"Complex task delegation",
		"Expertise required",
	}
)

// Options controls the shape of a generated run. Zero values select
// the defaults noted per field.
type Options struct {
	RunID             string        // default: fresh UUID
	ThreadID          string
	Duration          time.Duration // simulated wall-clock span; default 2m
	EventCount        int           // default: random in [8,20]
	IncludeErrors     bool          // ~10% of tool calls fail
	IncludeDelegation bool          // at most one delegation mid-run
}

// Generator writes synthetic runs through a Store.
type Generator struct {
	store *store.Store
	rng   *rand.Rand
}

// New creates a generator seeded for reproducible output.
func New(s *store.Store, seed int64) *Generator {
	return &Generator{store: s, rng: rand.New(rand.NewSource(seed))}
}

// GenerateRun produces one complete run: start, a plausible event
// sequence, and a completed summary stamped with the simulated span.
func (g *Generator) GenerateRun(opts Options) model.RunSummary {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = 2 * time.Minute
	}
	eventCount := opts.EventCount
	if eventCount <= 0 {
		eventCount = 8 + g.rng.Intn(13)
	}

	run := g.store.StartRun(runID, opts.ThreadID)

	timeStep := duration / time.Duration(eventCount)
	current := run.StartTime
	agent := model.AgentOrchestrator
	delegated := false

	for i := 0; i < eventCount; i++ {
		jitter := time.Duration((g.rng.Float64() - 0.5) * float64(timeStep))
		current = current.Add(timeStep + jitter)

		switch g.chooseEventKind(i, eventCount, opts.IncludeDelegation, delegated) {
		case model.EventLLMCall:
			g.store.AddEvent(g.llmCall(runID, opts.ThreadID, current, agent))
		case model.EventToolCall:
			g.store.AddEvent(g.toolCall(runID, opts.ThreadID, current, agent, opts.IncludeErrors))
		case model.EventDelegation:
			event, next := g.delegation(runID, opts.ThreadID, current, agent)
			g.store.AddEvent(event)
			agent = next
			delegated = true
		default:
			g.store.AddEvent(g.stepLog(runID, opts.ThreadID, current, agent))
		}
	}

	endEvent := model.NewRunEndEvent(runID, model.EventMeta{
		ThreadID: opts.ThreadID,
		StepName: "run_completion",
		Metadata: map[string]any{"final_status": "completed"},
	})
	endEvent.Timestamp = run.StartTime.Add(duration)
	g.store.AddEvent(endEvent)

	summary, _ := g.store.EndRunAt(runID, model.RunStatusCompleted, run.StartTime.Add(duration))
	return summary
}

// GenerateRuns produces count runs with the same options.
func (g *Generator) GenerateRuns(count int, opts Options) []model.RunSummary {
	runs := make([]model.RunSummary, 0, count)
	for i := 0; i < count; i++ {
		o := opts
		o.RunID = "" // each run gets its own id
		runs = append(runs, g.GenerateRun(o))
	}
	return runs
}

// chooseEventKind biases early events to setup, middle events to
// processing, and late events to cleanup, mirroring a real run's arc.
func (g *Generator) chooseEventKind(index, total int, includeDelegation, delegated bool) model.EventType {
	position := float64(index)
	switch {
	case position < float64(total)*0.2:
		return model.EventStepLog
	case position < float64(total)*0.8:
		choices := []model.EventType{model.EventLLMCall, model.EventToolCall, model.EventStepLog}
		if includeDelegation && !delegated && position > float64(total)*0.3 {
			choices = append(choices, model.EventDelegation)
		}
		return choices[g.rng.Intn(len(choices))]
	default:
		kinds := []model.EventType{model.EventStepLog, model.EventToolCall}
		return kinds[g.rng.Intn(len(kinds))]
	}
}

func (g *Generator) llmCall(runID, threadID string, ts time.Time, agent model.AgentType) model.Event {
	promptTokens := 50 + g.rng.Intn(451)
	completionTokens := 20 + g.rng.Intn(181)
	totalTokens := promptTokens + completionTokens
	responseTime := 500 + g.rng.Float64()*2500
	temperature := 0.1 + g.rng.Float64()*0.8

	event := model.NewLLMCallEvent(runID, model.EventMeta{
		ThreadID:   threadID,
		AgentType:  agent,
		StepName:   "llm_processing",
		DurationMs: &responseTime,
		Metadata: map[string]any{
			"prompt_length":   promptTokens,
			"response_length": completionTokens,
		},
	}, model.LLMCallPayload{
		Model:            modelNames[g.rng.Intn(len(modelNames))],
		PromptTokens:     &promptTokens,
		CompletionTokens: &completionTokens,
		TotalTokens:      &totalTokens,
		Temperature:      &temperature,
		ResponseTimeMs:   &responseTime,
	})
	event.Timestamp = ts
	return event
}

func (g *Generator) toolCall(runID, threadID string, ts time.Time, agent model.AgentType, includeErrors bool) model.Event {
	toolName := toolNames[g.rng.Intn(len(toolNames))]
	duration := 100 + g.rng.Float64()*1900

	success := true
	if includeErrors && g.rng.Float64() < 0.1 {
		success = false
		duration *= 2 // failures take longer
	}

	payload := model.ToolCallPayload{
		ToolName:  toolName,
		ToolInput: map[string]any{"query": "test query", "params": map[string]any{"limit": 10}},
		Success:   success,
	}
	if success {
		payload.ToolOutput = map[string]any{"result": "tool output"}
	} else {
		payload.ErrorMessage = "Tool execution failed"
	}

	event := model.NewToolCallEvent(runID, model.EventMeta{
		ThreadID:   threadID,
		AgentType:  agent,
		StepName:   "tool_" + toolName,
		DurationMs: &duration,
	}, payload)
	event.Timestamp = ts
	return event
}

func (g *Generator) delegation(runID, threadID string, ts time.Time, from model.AgentType) (model.Event, model.AgentType) {
	candidates := make([]model.AgentType, 0, len(agentTypes)-1)
	for _, a := range agentTypes {
		if a != from {
			candidates = append(candidates, a)
		}
	}
	to := candidates[g.rng.Intn(len(candidates))]
	duration := 50 + g.rng.Float64()*150

	event, err := model.NewDelegationEvent(runID, model.EventMeta{
		ThreadID:   threadID,
		AgentType:  from,
		StepName:   "delegation_decision",
		DurationMs: &duration,
	}, model.DelegationPayload{
		FromAgent:        from,
		ToAgent:          to,
		DelegationReason: delegationReasons[g.rng.Intn(len(delegationReasons))],
		InputData:        map[string]any{"query": "delegated query"},
		OutputData:       map[string]any{"response": "delegated response"},
	})
	if err != nil {
		// Candidates exclude the source agent, so this cannot happen.
		panic(err)
	}
	event.Timestamp = ts
	return event, to
}

func (g *Generator) stepLog(runID, threadID string, ts time.Time, agent model.AgentType) model.Event {
	stepName := stepNames[g.rng.Intn(len(stepNames))]
	duration := 10 + g.rng.Float64()*490
	statuses := []string{"in_progress", "completed", "pending"}

	event := model.NewStepLogEvent(runID, model.EventMeta{
		ThreadID:   threadID,
		AgentType:  agent,
		StepName:   stepName,
		DurationMs: &duration,
	}, model.StepLogPayload{
		StepDescription: "Executing " + stepName,
		StepData: map[string]any{
			"progress": g.rng.Intn(101),
			"status":   statuses[g.rng.Intn(len(statuses))],
		},
	})
	event.Timestamp = ts
	return event
}
