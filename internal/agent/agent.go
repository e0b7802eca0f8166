// Package agent implements the cooperating agents: an orchestrator that
// plans, searches the knowledge base, and delegates, and a summarizer
// that handles analysis tasks. Every agent narrates its work through
// the telemetry recorder.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/llm"
)

// invokeLLM calls the client and records the call as telemetry on the
// ambient run, including the failure case. The original error always
// propagates.
func invokeLLM(ctx context.Context, r *emit.Recorder, client llm.Client, messages []llm.Message, metadata map[string]any) (llm.Response, error) {
	resp, err := client.Invoke(ctx, messages)
	if err != nil {
		r.LogLLMCall(ctx, emit.LLMCall{
			Prompt:   renderMessages(messages),
			Response: fmt.Sprintf("Error: %v", err),
			Metadata: withEntry(metadata, "error", err.Error()),
		})
		return llm.Response{}, err
	}

	r.LogLLMCall(ctx, emit.LLMCall{
		Model:            resp.Model,
		Prompt:           renderMessages(messages),
		Response:         resp.Text,
		DurationMs:       resp.Duration.Seconds() * 1000,
		PromptTokens:     &resp.Usage.PromptTokens,
		CompletionTokens: &resp.Usage.CompletionTokens,
		Metadata:         metadata,
	})
	return resp, nil
}

func renderMessages(messages []llm.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Role+": "+m.Content)
	}
	return strings.Join(parts, "\n")
}

func withEntry(metadata map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[key] = value
	return out
}

// headline truncates text for step descriptions.
func headline(text string) string {
	if len(text) > 100 {
		return text[:100] + "..."
	}
	return text
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
