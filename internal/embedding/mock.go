package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultMockDimension matches the all-minilm:l6-v2 output so stores
// indexed for the local model accept mock vectors unchanged.
const DefaultMockDimension = 384

// MockClient generates deterministic embeddings from a text hash. It is
// the offline fallback when no live provider credential is configured,
// and the default embedder in tests: the same input always produces the
// same unit vector, with no network involved.
type MockClient struct {
	dimension int
}

var _ Embedder = (*MockClient)(nil)

// NewMockClient creates a mock embedder. If dimension is 0, uses
// DefaultMockDimension (384).
func NewMockClient(dimension int) *MockClient {
	if dimension == 0 {
		dimension = DefaultMockDimension
	}
	return &MockClient{dimension: dimension}
}

// Model returns the pseudo model name.
func (c *MockClient) Model() string {
	return "mock-hash-embedder"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

// Embed derives a unit vector from the fnv-1a hash of the text,
// expanded through a linear congruential generator.
func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, c.dimension)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

// EmbedBatch embeds each text independently, preserving input order.
func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Health always passes; the mock has no external dependency.
func (c *MockClient) Health(_ context.Context) error {
	return nil
}

// normalize scales a vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
