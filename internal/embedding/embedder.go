// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrProvider classifies failures of a live embedding backend. Callers
// check it with errors.Is() to decide between surfacing and degrading.
var ErrProvider = errors.New("embedding provider error")

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result is
	// order-preserving: one vector per input, all of the same dimension.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// CRITICAL: Must match the vector index dimension in the store backend.
	Dimension() int

	// Health verifies the backend is reachable and producing vectors.
	Health(ctx context.Context) error
}

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderMock generates deterministic hash-based vectors offline.
	ProviderMock ProviderType = "mock"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderVoyage uses the Voyage AI embeddings API.
	ProviderVoyage ProviderType = "voyage"

	// ProviderOllama uses a local Ollama server for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderBedrock uses Amazon Titan embeddings via the Bedrock runtime.
	ProviderBedrock ProviderType = "bedrock"
)

// Config holds configuration for creating an Embedder.
type Config struct {
	// Provider specifies which embedding backend to use.
	Provider ProviderType

	// Model is the embedding model name (provider-specific).
	// OpenAI: "text-embedding-3-small" (1536-dim)
	// Voyage: "voyage-3" (1024-dim)
	// Ollama: "all-minilm:l6-v2" (384-dim), "nomic-embed-text" (768-dim)
	// Bedrock: "amazon.titan-embed-text-v2:0" (1024-dim)
	Model string

	// ExpectedDimension is the required output dimension.
	// Set to 0 to use the provider's default.
	ExpectedDimension int

	// OpenAIAPIKey authorizes the OpenAI provider.
	OpenAIAPIKey string

	// VoyageAPIKey authorizes the Voyage provider.
	VoyageAPIKey string

	// OllamaHost overrides the Ollama server URL (falls back to the
	// OLLAMA_HOST environment variable, then http://localhost:11434).
	OllamaHost string

	// AWSRegion overrides the region for the Bedrock provider.
	AWSRegion string
}

// New creates an Embedder based on the provided configuration.
//
// Provider selection happens here, once, at construction time. A live
// provider whose credential is absent downgrades to the deterministic
// mock with a logged warning so the engine stays usable offline.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderMock, "":
		return NewMockClient(cfg.ExpectedDimension), nil

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return fallbackToMock(cfg, "OPENAI_API_KEY is not set"), nil
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.ExpectedDimension)

	case ProviderVoyage:
		if cfg.VoyageAPIKey == "" {
			return fallbackToMock(cfg, "VOYAGE_API_KEY is not set"), nil
		}
		return NewVoyageClient(cfg.VoyageAPIKey, cfg.Model, cfg.ExpectedDimension)

	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaHost, cfg.Model, cfg.ExpectedDimension)

	case ProviderBedrock:
		client, err := NewBedrockClient(ctx, cfg.AWSRegion, cfg.Model, cfg.ExpectedDimension)
		if err != nil {
			return fallbackToMock(cfg, fmt.Sprintf("bedrock unavailable: %v", err)), nil
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func fallbackToMock(cfg Config, reason string) *MockClient {
	slog.Warn("embedding credentials missing, falling back to deterministic mock vectors",
		"provider", cfg.Provider,
		"reason", reason)
	return NewMockClient(cfg.ExpectedDimension)
}
