package service_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/store"
)

const testDimension = 8

func ptr[T any](v T) *T { return &v }

// axisVec is the reference query vector used by retrieval tests.
func axisVec() []float32 {
	v := make([]float32, testDimension)
	v[0] = 1
	return v
}

// vecAt returns a unit vector whose cosine similarity against axisVec is c.
func vecAt(c float64) []float32 {
	v := make([]float32, testDimension)
	v[0] = float32(c)
	v[1] = float32(math.Sqrt(1 - c*c))
	return v
}

func seedChunk(t *testing.T, st store.Store, id, owner string, memoryType models.MemoryType, vec []float32, weight float64, importance models.Importance, at time.Time) {
	t.Helper()
	err := st.UpsertMany(context.Background(), []models.MemoryChunk{{
		ID:              id,
		CharacterID:     owner,
		Content:         "memory " + id,
		MemoryType:      memoryType,
		Embedding:       vec,
		EmotionalWeight: weight,
		Importance:      importance,
		CreatedAt:       at,
	}})
	require.NoError(t, err)
}

// vecEmbedder returns canned vectors for exact texts and deterministic mock
// vectors for everything else.
type vecEmbedder struct {
	*embedding.MockClient
	vectors map[string][]float32
}

func newVecEmbedder(vectors map[string][]float32) *vecEmbedder {
	return &vecEmbedder{
		MockClient: embedding.NewMockClient(testDimension),
		vectors:    vectors,
	}
}

func (e *vecEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return e.MockClient.Embed(ctx, text)
}

func (e *vecEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// failingEmbedder errors on every call, simulating a dead provider.
type failingEmbedder struct {
	*embedding.MockClient
}

func newFailingEmbedder() *failingEmbedder {
	return &failingEmbedder{MockClient: embedding.NewMockClient(testDimension)}
}

func (e *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: provider offline", embedding.ErrProvider)
}

func (e *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: provider offline", embedding.ErrProvider)
}

func (e *failingEmbedder) Health(context.Context) error {
	return fmt.Errorf("%w: provider offline", embedding.ErrProvider)
}

// markedEmbedder rejects any text containing the marker. Batches fail
// wholesale when one input is marked, like a real provider endpoint.
type markedEmbedder struct {
	*embedding.MockClient
	marker string
}

func newMarkedEmbedder(marker string) *markedEmbedder {
	return &markedEmbedder{
		MockClient: embedding.NewMockClient(testDimension),
		marker:     marker,
	}
}

func (e *markedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, e.marker) {
		return nil, fmt.Errorf("%w: rejected input", embedding.ErrProvider)
	}
	return e.MockClient.Embed(ctx, text)
}

func (e *markedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// faultyStore wraps a real store and fails selected operations.
type faultyStore struct {
	store.Store
	failQuery  bool
	failUpsert bool
	failList   bool
}

func (f *faultyStore) QueryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if f.failQuery {
		return nil, fmt.Errorf("%w: query refused", store.ErrStore)
	}
	return f.Store.QueryTopK(ctx, characterID, vector, k)
}

func (f *faultyStore) UpsertMany(ctx context.Context, chunks []models.MemoryChunk) error {
	if f.failUpsert {
		return fmt.Errorf("%w: write refused", store.ErrStore)
	}
	return f.Store.UpsertMany(ctx, chunks)
}

func (f *faultyStore) ListByOwner(ctx context.Context, characterID string) ([]models.MemoryChunk, error) {
	if f.failList {
		return nil, fmt.Errorf("%w: list refused", store.ErrStore)
	}
	return f.Store.ListByOwner(ctx, characterID)
}
