// Package config reads engine configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Embedding provider
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int
	OpenAIAPIKey   string
	VoyageAPIKey   string
	OllamaHost     string
	AWSRegion      string

	// Persona generation assist
	LLMProvider     string
	LLMModel        string
	AnthropicAPIKey string

	// Memory store
	StoreBackend     string
	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUser      string
	SurrealPass      string
	PostgresDSN      string
	ChromemPath      string

	// Character cards
	CharactersDir string

	// Retrieval
	MinSimilarity   float64
	MaxResults      int
	MemoryCap       int
	RecencyHalflife time.Duration

	// Ingestion
	Concurrency int

	// Server / client
	Addr          string
	ServerURL     string
	ClientTimeout time.Duration

	// Logging
	LogLevel slog.Level
	LogFile  string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		EmbedProvider:  getEnv("REVERIE_EMBED_PROVIDER", "mock"),
		EmbedModel:     os.Getenv("REVERIE_EMBED_MODEL"),
		EmbedDimension: getEnvInt("REVERIE_EMBED_DIMENSION", 0),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		VoyageAPIKey:   os.Getenv("VOYAGE_API_KEY"),
		OllamaHost:     getEnv("REVERIE_OLLAMA_URL", "http://localhost:11434"),
		AWSRegion:      os.Getenv("AWS_REGION"),

		LLMProvider:     getEnv("REVERIE_LLM_PROVIDER", "none"),
		LLMModel:        os.Getenv("REVERIE_LLM_MODEL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		StoreBackend:     getEnv("REVERIE_STORE", "memory"),
		SurrealURL:       getEnv("REVERIE_SURREAL_URL", "ws://localhost:8000/rpc"),
		SurrealNamespace: getEnv("REVERIE_SURREAL_NAMESPACE", "reverie"),
		SurrealDatabase:  getEnv("REVERIE_SURREAL_DATABASE", "memory"),
		SurrealUser:      getEnv("REVERIE_SURREAL_USER", "root"),
		SurrealPass:      getEnv("REVERIE_SURREAL_PASS", "root"),
		PostgresDSN:      os.Getenv("REVERIE_POSTGRES_DSN"),
		ChromemPath:      os.Getenv("REVERIE_CHROMEM_PATH"),

		CharactersDir: getEnv("REVERIE_CHARACTERS_DIR", "./characters"),

		MinSimilarity:   getEnvFloat("REVERIE_MIN_SIMILARITY", 0.65),
		MaxResults:      getEnvInt("REVERIE_MAX_RESULTS", 3),
		MemoryCap:       getEnvInt("REVERIE_MEMORY_CAP", 200),
		RecencyHalflife: getEnvDuration("REVERIE_RECENCY_HALFLIFE", 168*time.Hour),

		Concurrency: getEnvInt("REVERIE_CONCURRENCY", 4),

		Addr:          getEnv("REVERIE_ADDR", ":8484"),
		ServerURL:     getEnv("REVERIE_SERVER_URL", "http://localhost:8484"),
		ClientTimeout: getEnvDuration("REVERIE_CLIENT_TIMEOUT", 30*time.Second),

		LogLevel: parseLogLevel(getEnv("REVERIE_LOG_LEVEL", "INFO")),
		LogFile:  os.Getenv("REVERIE_LOG_FILE"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
