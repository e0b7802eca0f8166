// Package llm abstracts the chat-completion providers the agents call.
// Providers differ in transport and failure shapes; everything is
// normalized to a Response at this edge so callers never see provider
// wire formats.
package llm

import (
	"context"
	"time"
)

// Message roles accepted by every client.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting for one completion. When a provider
// omits usage the client fills it with a local estimate.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a normalized completion result.
type Response struct {
	Text     string
	Model    string
	Usage    Usage
	Duration time.Duration
}

// Client is a chat-completion provider.
type Client interface {
	// Invoke sends the conversation and returns the completion.
	Invoke(ctx context.Context, messages []Message) (Response, error)
}
