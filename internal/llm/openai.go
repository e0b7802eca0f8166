package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient speaks the OpenAI-compatible chat-completions protocol.
// It works against any endpoint exposing /v1/chat/completions, which
// covers most proxy gateways.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	estimator   *Estimator
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// The token estimator is best-effort; when the tokenizer cannot be
// built, responses without provider usage carry zero counts.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	est, _ := NewEstimator(model)
	return &OpenAIClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.1,
		httpClient:  &http.Client{Timeout: timeout},
		estimator:   est,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke sends the conversation and returns the first choice.
func (c *OpenAIClient) Invoke(ctx context.Context, messages []Message) (Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return Response{}, fmt.Errorf("llm: provider error [%d]: %s (type: %s)",
				resp.StatusCode, apiErr.Error.Message, apiErr.Error.Type)
		}
		return Response{}, fmt.Errorf("llm: provider error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("llm: unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return Response{}, fmt.Errorf("llm: provider returned no choices")
	}

	text := result.Choices[0].Message.Content
	usage := Usage{}
	if result.Usage != nil {
		usage = *result.Usage
	} else if c.estimator != nil {
		usage.PromptTokens = c.estimator.CountMessages(messages)
		usage.CompletionTokens = c.estimator.Count(text)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	modelName := result.Model
	if modelName == "" {
		modelName = c.model
	}
	return Response{
		Text:     text,
		Model:    modelName,
		Usage:    usage,
		Duration: time.Since(start),
	}, nil
}
