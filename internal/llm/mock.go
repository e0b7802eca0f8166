package llm

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a deterministic in-process client for offline runs and
// tests. Responses echo the last user message.
type MockClient struct {
	// Respond, when set, overrides the canned reply.
	Respond func(messages []Message) string
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock client with the default canned reply.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Invoke returns a canned completion with estimated usage.
func (m *MockClient) Invoke(_ context.Context, messages []Message) (Response, error) {
	text := m.reply(messages)

	prompt := 0
	for _, msg := range messages {
		prompt += len(msg.Content) / 4
	}
	completion := len(text) / 4
	return Response{
		Text:  text,
		Model: "mock-model",
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		Duration: time.Millisecond,
	}, nil
}

func (m *MockClient) reply(messages []Message) string {
	if m.Respond != nil {
		return m.Respond(messages)
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			content := messages[i].Content
			if len(content) > 100 {
				content = content[:100] + "..."
			}
			return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", content)
		}
	}
	return "[MOCK] This is a mock response."
}
