package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/characters"
	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/server"
	"github.com/reverie-ai/reverie/internal/service"
	"github.com/reverie-ai/reverie/internal/store"
)

const testDimension = 8

type testEnv struct {
	handler http.Handler
	store   store.Store
}

func newTestEnv(t *testing.T, chars ...models.Character) *testEnv {
	t.Helper()
	return newTestEnvWithEmbedder(t, embedding.NewMockClient(testDimension), chars...)
}

func newTestEnvWithEmbedder(t *testing.T, emb embedding.Embedder, chars ...models.Character) *testEnv {
	t.Helper()

	src := characters.NewStaticSource(chars...)
	st := store.NewMemoryStore()
	locks := service.NewCharacterLocks()
	collector := metrics.NewCollector()

	ingest := service.NewIngestService(src, emb, st, nil, locks, collector, 2)
	retrieval := service.NewRetrievalService(src, emb, st, locks, collector, service.DefaultRetrievalOptions())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := server.New(ingest, retrieval, src, service.NewJobManager(), collector, logger)
	return &testEnv{handler: srv.Handler(), store: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (e *testEnv) waitForJob(t *testing.T, id string) service.Job {
	t.Helper()

	var job service.Job
	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/v1/jobs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		job = decode[service.Job](t, w)
		return job.Status == service.JobStatusCompleted || job.Status == service.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func mira() models.Character {
	return models.Character{
		ID:                 "char-mira",
		Name:               "Mira",
		Identity:           "A lighthouse keeper on a remote northern island.",
		Personality:        "Patient and wry, slow to anger.",
		CorePersonaSummary: "A lighthouse keeper who speaks plainly.",
	}
}

func TestServerIngestCharacter(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/ingest", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	accepted := decode[service.Job](t, w)
	assert.Len(t, accepted.ID, 8)
	assert.Equal(t, service.JobTypeIngest, accepted.Type)
	assert.Equal(t, []string{"char-mira"}, accepted.CharacterIDs)

	job := env.waitForJob(t, accepted.ID)
	assert.Equal(t, service.JobStatusCompleted, job.Status)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "char-mira", job.Results[0].CharacterID)
	require.NotNil(t, job.Results[0].Stats)
	assert.Greater(t, job.Results[0].Stats.ChunksCreated, 0)

	ctx := context.Background()
	count, err := env.store.CountByOwner(ctx, "char-mira")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestServerIngestUnknownCharacter(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-ghost/ingest", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decode[map[string]string](t, w)
	assert.Contains(t, body["error"], "not found")
}

func TestServerIngestAll(t *testing.T) {
	env := newTestEnv(t,
		mira(),
		models.Character{ID: "char-tobin", Name: "Tobin", Identity: "A ferry pilot."},
	)

	w := env.do(t, http.MethodPost, "/v1/ingest", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	accepted := decode[service.Job](t, w)
	assert.Equal(t, service.JobTypeIngestAll, accepted.Type)
	assert.Len(t, accepted.CharacterIDs, 2)

	job := env.waitForJob(t, accepted.ID)
	assert.Equal(t, service.JobStatusCompleted, job.Status)
	assert.Equal(t, job.Total, job.Progress)
	assert.Len(t, job.Results, 2)
}

func TestServerContextRoundTrip(t *testing.T) {
	env := newTestEnv(t, mira())

	// Same text embeds to the same mock vector, so the recorded memory
	// matches the later query exactly.
	record := env.do(t, http.MethodPost, "/v1/characters/char-mira/memories", map[string]any{
		"content":          "User admitted they are afraid of the open sea.",
		"emotional_weight": 0.9,
		"importance":       "high",
	})
	require.Equal(t, http.StatusNoContent, record.Code)

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/context", map[string]any{
		"message": "User admitted they are afraid of the open sea.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	rc := decode[models.RetrievalContext](t, w)
	assert.Equal(t, "A lighthouse keeper who speaks plainly.", rc.CorePersona)
	require.Len(t, rc.RelevantMemories, 1)
	assert.Equal(t, "User admitted they are afraid of the open sea.", rc.RelevantMemories[0].Content)
	assert.Equal(t, models.MemoryTypeConversation, rc.RelevantMemories[0].MemoryType)
}

func TestServerContextEmptyStoreKeepsMemoriesArray(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/context", map[string]any{
		"message": "Anything on your mind?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The dialogue engine iterates the field unconditionally; null would
	// break it.
	assert.Contains(t, w.Body.String(), `"relevant_memories":[]`)
}

func TestServerContextOptions(t *testing.T) {
	env := newTestEnv(t, mira())

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/v1/characters/char-mira/memories", map[string]any{
			"content": "The harbor was quiet tonight.",
		})
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/context", map[string]any{
		"message": "The harbor was quiet tonight.",
		"options": map[string]any{"max_results": 5},
	})
	require.Equal(t, http.StatusOK, w.Code)

	rc := decode[models.RetrievalContext](t, w)
	assert.Len(t, rc.RelevantMemories, 5)
}

func TestServerContextBadBody(t *testing.T) {
	env := newTestEnv(t, mira())

	req := httptest.NewRequest(http.MethodPost, "/v1/characters/char-mira/context",
		strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestServerContextUnknownCharacter(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-ghost/context", map[string]any{
		"message": "Hello?",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerRecordMemory(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/memories", map[string]any{
		"content":          "User shared their brother's name.",
		"emotional_weight": 0.7,
		"importance":       "high",
	})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	ctx := context.Background()
	chunks, err := env.store.ListByOwner(ctx, "char-mira")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "User shared their brother's name.", chunks[0].Content)
	assert.Equal(t, models.MemoryTypeConversation, chunks[0].MemoryType)
	assert.InDelta(t, 0.7, chunks[0].EmotionalWeight, 1e-9)
	assert.Equal(t, models.ImportanceHigh, chunks[0].Importance)
}

func TestServerRecordMemoryUnknownCharacter(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-ghost/memories", map[string]any{
		"content": "Lost words.",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerListCharacters(t *testing.T) {
	env := newTestEnv(t,
		mira(),
		models.Character{ID: "char-tobin", Name: "Tobin"},
	)

	w := env.do(t, http.MethodGet, "/v1/characters", nil)
	require.Equal(t, http.StatusOK, w.Code)

	list := decode[[]map[string]string](t, w)
	require.Len(t, list, 2)
	ids := []string{list[0]["id"], list[1]["id"]}
	assert.ElementsMatch(t, []string{"char-mira", "char-tobin"}, ids)
}

func TestServerListJobs(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodGet, "/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	accepted := decode[service.Job](t, env.do(t, http.MethodPost, "/v1/characters/char-mira/ingest", nil))
	env.waitForJob(t, accepted.ID)

	jobs := decode[[]service.Job](t, env.do(t, http.MethodGet, "/v1/jobs", nil))
	require.Len(t, jobs, 1)
	assert.Equal(t, accepted.ID, jobs[0].ID)
}

func TestServerJobNotFound(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodGet, "/v1/jobs/deadbeef", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, embedding.ErrProvider
}

func (downEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, embedding.ErrProvider
}

func (downEmbedder) Model() string { return "down" }

func (downEmbedder) Dimension() int { return testDimension }

func (downEmbedder) Health(context.Context) error { return embedding.ErrProvider }

func TestServerHealth(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Healthy    bool                      `json:"healthy"`
		Components []service.ComponentHealth `json:"components"`
	}](t, w)
	assert.True(t, resp.Healthy)
	assert.Len(t, resp.Components, 3)
}

func TestServerHealthDegraded(t *testing.T) {
	env := newTestEnvWithEmbedder(t, downEmbedder{}, mira())

	w := env.do(t, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decode[struct {
		Healthy bool `json:"healthy"`
	}](t, w)
	assert.False(t, resp.Healthy)
}

func TestServerMetrics(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodPost, "/v1/characters/char-mira/context", map[string]any{
		"message": "Evening.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	m := env.do(t, http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, m.Code)

	snap := decode[metrics.Snapshot](t, m)
	require.NotNil(t, snap.Retrieve)
	assert.Equal(t, int64(1), snap.Retrieve.Count)
	require.NotNil(t, snap.Embed)
}

func TestServerJobEvents(t *testing.T) {
	env := newTestEnv(t, mira())
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	accepted := decode[service.Job](t, env.do(t, http.MethodPost, "/v1/characters/char-mira/ingest", nil))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/jobs/" + accepted.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var lastStatus service.JobStatus
	lastProgress, lastTotal := -1, -1
	for {
		var snap service.Job
		if err := conn.ReadJSON(&snap); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
				"expected normal close, got %v", err)
			break
		}
		assert.Equal(t, accepted.ID, snap.ID)
		lastStatus, lastProgress, lastTotal = snap.Status, snap.Progress, snap.Total
	}

	assert.Equal(t, service.JobStatusCompleted, lastStatus)
	assert.Equal(t, lastTotal, lastProgress)
}

func TestServerJobEventsUnknownJob(t *testing.T) {
	env := newTestEnv(t, mira())

	w := env.do(t, http.MethodGet, "/v1/jobs/deadbeef/events", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
