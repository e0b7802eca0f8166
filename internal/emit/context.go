// Package emit provides ambient, request-scoped telemetry emission.
//
// The run id, thread id, and current agent travel on the context.Context
// rather than in process globals, so concurrent runs never observe each
// other's ambient state. Every Log* helper reads the ambient run id and
// is a deliberate silent no-op when none is bound — agent code stays
// telemetry-agnostic when invoked outside an orchestrated run.
package emit

import (
	"context"

	"github.com/ashita-ai/kiseki/internal/model"
)

type contextKey string

const (
	keyRunID    contextKey = "run_id"
	keyThreadID contextKey = "thread_id"
	keyAgent    contextKey = "agent_type"
)

// WithRun returns a context carrying the given run and thread identifiers.
func WithRun(ctx context.Context, runID, threadID string) context.Context {
	ctx = context.WithValue(ctx, keyRunID, runID)
	if threadID != "" {
		ctx = context.WithValue(ctx, keyThreadID, threadID)
	}
	return ctx
}

// WithAgent returns a context with the ambient agent set. Subsequent Log*
// calls attribute their events to this agent.
func WithAgent(ctx context.Context, agent model.AgentType) context.Context {
	return context.WithValue(ctx, keyAgent, agent)
}

// RunIDFromContext extracts the ambient run id, or "" when unbound.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRunID).(string); ok {
		return v
	}
	return ""
}

// ThreadIDFromContext extracts the ambient thread id, or "" when unbound.
func ThreadIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyThreadID).(string); ok {
		return v
	}
	return ""
}

// AgentFromContext extracts the ambient agent, or "" when unbound.
func AgentFromContext(ctx context.Context) model.AgentType {
	if v, ok := ctx.Value(keyAgent).(model.AgentType); ok {
		return v
	}
	return ""
}
