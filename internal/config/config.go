// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// LLM provider settings.
	LLMBaseURL       string // OpenAI-compatible endpoint, e.g. a LiteLLM proxy.
	LLMAPIKey        string
	LLMModel         string
	LLMTimeout       time.Duration
	UseLLMDiagrammer bool // LLM-assisted diagram analysis instead of deterministic.

	// Knowledge base settings.
	QdrantURL           string // Empty disables Qdrant; the static searcher serves instead.
	QdrantAPIKey        string
	QdrantCollection    string
	OpenAIAPIKey        string
	EmbeddingModel      string
	EmbeddingDimensions int // Vector dimensions; must match the chosen model's output.
	SearchTopK          int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	SyntheticSeed       int64 // Seed for sample-data generation; 0 means time-based.
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("KISEKI_PORT", 8000),
		ReadTimeout:         envDuration("KISEKI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("KISEKI_WRITE_TIMEOUT", 60*time.Second),
		LLMBaseURL:          envStr("KISEKI_LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:           envStr("KISEKI_LLM_API_KEY", ""),
		LLMModel:            envStr("KISEKI_LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:          envDuration("KISEKI_LLM_TIMEOUT", 60*time.Second),
		UseLLMDiagrammer:    envBool("USE_LLM_DIAGRAMMER", false),
		QdrantURL:           envStr("QDRANT_URL", ""),
		QdrantAPIKey:        envStr("QDRANT_API_KEY", ""),
		QdrantCollection:    envStr("KISEKI_QDRANT_COLLECTION", "kiseki_kb"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		EmbeddingModel:      envStr("KISEKI_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("KISEKI_EMBEDDING_DIMENSIONS", 1536),
		SearchTopK:          envInt("KISEKI_SEARCH_TOP_K", 5),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "kiseki"),
		LogLevel:            envStr("KISEKI_LOG_LEVEL", "info"),
		SyntheticSeed:       int64(envInt("KISEKI_SYNTHETIC_SEED", 0)),
		MaxRequestBodyBytes: int64(envInt("KISEKI_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: KISEKI_PORT must be in (0, 65535]")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: KISEKI_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.SearchTopK <= 0 {
		return fmt.Errorf("config: KISEKI_SEARCH_TOP_K must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: KISEKI_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
