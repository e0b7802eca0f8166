package llm

import (
	"log/slog"
	"os"
	"time"
)

const (
	// EnvMode selects the client implementation at startup.
	EnvMode = "KISEKI_MODE"
	// ModeMock selects the deterministic in-process client.
	ModeMock = "MOCK"
)

// NewClient creates a client based on the KISEKI_MODE environment
// variable: MOCK yields the deterministic mock, anything else the
// OpenAI-compatible HTTP client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) Client {
	if os.Getenv(EnvMode) == ModeMock {
		slog.Info("KISEKI_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	return NewOpenAIClient(baseURL, apiKey, model, timeout)
}
