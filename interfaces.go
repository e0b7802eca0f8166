package kiseki

import (
	"context"
	"time"
)

// Message is one chat message in a model invocation.
type Message struct {
	Role    string
	Content string
}

// LLMResponse is the result of one model invocation.
type LLMResponse struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// LLMClient generates chat completions. When provided via WithLLMClient,
// it replaces the env-configured OpenAI-compatible client for every
// agent in the system. Uses standalone structs (not internal types) so
// external consumers never import internal packages.
type LLMClient interface {
	Invoke(ctx context.Context, messages []Message) (LLMResponse, error)
}

// Searcher answers a knowledge-base query with rendered context text.
// When provided via WithSearcher, it replaces the auto-detected Qdrant
// (or static fallback) knowledge base.
type Searcher interface {
	Query(ctx context.Context, text string) (string, error)
}
