package embedding_test

import (
	"context"
	"testing"

	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToMock(t *testing.T) {
	embedder, err := embedding.New(context.Background(), embedding.Config{})
	require.NoError(t, err)
	assert.IsType(t, &embedding.MockClient{}, embedder)
}

func TestNewFallsBackToMockWithoutCredential(t *testing.T) {
	tests := []struct {
		name string
		cfg  embedding.Config
	}{
		{"openai without key", embedding.Config{Provider: embedding.ProviderOpenAI}},
		{"voyage without key", embedding.Config{Provider: embedding.ProviderVoyage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, err := embedding.New(context.Background(), tt.cfg)
			require.NoError(t, err, "missing credentials degrade, they do not fail")
			assert.IsType(t, &embedding.MockClient{}, embedder)
		})
	}
}

func TestNewFallbackKeepsDimension(t *testing.T) {
	embedder, err := embedding.New(context.Background(), embedding.Config{
		Provider:          embedding.ProviderOpenAI,
		ExpectedDimension: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, 256, embedder.Dimension(),
		"fallback must keep the configured dimension so the store index still matches")
}

func TestNewOpenAIWithKey(t *testing.T) {
	embedder, err := embedding.New(context.Background(), embedding.Config{
		Provider:     embedding.ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
	})
	require.NoError(t, err)
	assert.IsType(t, &embedding.OpenAIClient{}, embedder)
	assert.Equal(t, embedding.DefaultOpenAIModel, embedder.Model())
	assert.Equal(t, embedding.DefaultOpenAIDimension, embedder.Dimension())
}

func TestNewVoyageWithKey(t *testing.T) {
	embedder, err := embedding.New(context.Background(), embedding.Config{
		Provider:     embedding.ProviderVoyage,
		VoyageAPIKey: "pa-test",
	})
	require.NoError(t, err)
	assert.IsType(t, &embedding.VoyageClient{}, embedder)
	assert.Equal(t, embedding.DefaultVoyageModel, embedder.Model())
	assert.Equal(t, embedding.DefaultVoyageDimension, embedder.Dimension())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := embedding.New(context.Background(), embedding.Config{Provider: "telepathy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}
