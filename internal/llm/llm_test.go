package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello back"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "test-key", "gpt-4o-mini", 5*time.Second)
	resp, err := c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello back", resp.Text)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Positive(t, resp.Duration)
}

func TestOpenAIClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "gpt-4o-mini", 5*time.Second)
	_, err := c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIClient_EstimatesUsageWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "four token reply here"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "gpt-4o-mini", 5*time.Second)
	resp, err := c.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "count my tokens please"}})
	require.NoError(t, err)
	assert.Positive(t, resp.Usage.PromptTokens)
	assert.Positive(t, resp.Usage.CompletionTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestMockClient_EchoesLastUserMessage(t *testing.T) {
	c := NewMockClient()
	resp, err := c.Invoke(context.Background(), []Message{
		{Role: RoleSystem, Content: "you are helpful"},
		{Role: RoleUser, Content: "ping"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "[MOCK]")
	assert.Contains(t, resp.Text, "ping")
	assert.Equal(t, "mock-model", resp.Model)
}

func TestMockClient_CustomResponder(t *testing.T) {
	c := &MockClient{Respond: func([]Message) string { return `{"analysis":"ok"}` }}
	resp, err := c.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"analysis":"ok"}`, resp.Text)
}

func TestNewClient_ModeSelection(t *testing.T) {
	t.Setenv(EnvMode, ModeMock)
	_, ok := NewClient("http://localhost", "", "gpt-4o-mini", time.Second).(*MockClient)
	assert.True(t, ok)

	t.Setenv(EnvMode, "")
	_, ok = NewClient("http://localhost", "", "gpt-4o-mini", time.Second).(*OpenAIClient)
	assert.True(t, ok)
}

func TestEstimator_Counts(t *testing.T) {
	est, err := NewEstimator("gpt-4")
	require.NoError(t, err)
	assert.Positive(t, est.Count("hello world"))
	assert.Zero(t, est.Count(""))

	total := est.CountMessages([]Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
	})
	assert.Equal(t, est.Count("one")+est.Count("two"), total)
}
