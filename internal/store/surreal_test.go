package store_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/store"
)

var (
	surrealStore     *store.SurrealStore
	surrealContainer testcontainers.Container
)

// TestMain starts one SurrealDB container shared by all integration
// tests. Short mode, and environments without Docker, run the in-process
// backends only.
func TestMain(m *testing.M) {
	flag.Parse()

	if !testing.Short() {
		if err := startSurreal(); err != nil {
			log.Printf("surrealdb unavailable, integration tests will be skipped: %v", err)
		}
	}

	code := m.Run()

	ctx := context.Background()
	if surrealStore != nil {
		_ = surrealStore.Close(ctx)
	}
	if surrealContainer != nil {
		_ = surrealContainer.Terminate(ctx)
	}

	os.Exit(code)
}

func startSurreal() error {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	surrealContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	host, err := surrealContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := surrealContainer.MappedPort(ctx, "8000")
	if err != nil {
		return fmt.Errorf("mapped port: %w", err)
	}

	surrealStore, err = store.OpenSurrealStore(ctx, store.Config{
		Backend:          store.BackendSurreal,
		Dimension:        testDimension,
		SurrealURL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		SurrealNamespace: "test",
		SurrealDatabase:  "test",
		SurrealUsername:  "root",
		SurrealPassword:  "root",
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return nil
}

// requireSurreal skips the test unless the shared container came up.
func requireSurreal(t *testing.T) *store.SurrealStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if surrealStore == nil {
		t.Skip("surrealdb container not available")
	}
	return surrealStore
}

func TestSurrealStoreUpsertAndList(t *testing.T) {
	st := requireSurreal(t)
	ctx := context.Background()
	owner := "sq-list"
	cleanupOwner(t, st, owner)

	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{
		newChunk("sq-list-2", owner, models.MemoryTypeConversation, axisVec(testDimension, 1), baseTime.Add(time.Hour)),
		newChunk("sq-list-1", owner, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime),
	}))

	got, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sq-list-1", got[0].ID, "list should be oldest first")
	assert.Equal(t, "sq-list-2", got[1].ID)
	assert.Equal(t, "memory sq-list-1", got[0].Content)
	assert.Equal(t, models.MemoryTypeBio, got[0].MemoryType)
	assert.InDelta(t, 0.5, got[0].EmotionalWeight, 1e-9)
	assert.Equal(t, models.ImportanceMedium, got[0].Importance)
	assert.WithinDuration(t, baseTime, got[0].CreatedAt, time.Second)

	count, err := st.CountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSurrealStoreUpsertReplaces(t *testing.T) {
	st := requireSurreal(t)
	ctx := context.Background()
	owner := "sq-upsert"
	cleanupOwner(t, st, owner)

	first := newChunk("sq-upsert-1", owner, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime)
	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{first}))

	second := first
	second.Content = "revised memory"
	second.Embedding = axisVec(testDimension, 1)
	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{second}))

	got, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 1, "upserting the same ID must replace, not duplicate")
	assert.Equal(t, "revised memory", got[0].Content)
}

func TestSurrealStoreQueryTopK(t *testing.T) {
	st := requireSurreal(t)
	ctx := context.Background()
	owner := "sq-query"
	other := "sq-query-other"
	cleanupOwner(t, st, owner)
	cleanupOwner(t, st, other)

	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{
		newChunk("sq-q-far", owner, models.MemoryTypeBio, axisVec(testDimension, 1), baseTime),
		newChunk("sq-q-exact", owner, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime),
		newChunk("sq-q-mid", owner, models.MemoryTypeConversation, mixVec(testDimension, 0, 1), baseTime),
		newChunk("sq-q-other", other, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime),
	}))

	got, err := st.QueryTopK(ctx, owner, axisVec(testDimension, 0), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sq-q-exact", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-3)
	assert.Equal(t, "sq-q-mid", got[1].ID)
	assert.InDelta(t, 0.7071, got[1].Similarity, 1e-3)

	for _, sc := range got {
		assert.Equal(t, owner, sc.CharacterID, "query must not leak another owner's chunks")
	}
}

func TestSurrealStoreDeleteByOwnerAndType(t *testing.T) {
	st := requireSurreal(t)
	ctx := context.Background()
	owner := "sq-delete-type"
	cleanupOwner(t, st, owner)

	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{
		newChunk("sq-dt-1", owner, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime),
		newChunk("sq-dt-2", owner, models.MemoryTypeBio, axisVec(testDimension, 1), baseTime),
		newChunk("sq-dt-3", owner, models.MemoryTypeConversation, axisVec(testDimension, 2), baseTime),
	}))

	deleted, err := st.DeleteByOwnerAndType(ctx, owner, models.MemoryTypeBio)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, models.MemoryTypeConversation, remaining[0].MemoryType)

	deleted, err = st.DeleteByOwnerAndType(ctx, owner, models.MemoryTypeBio)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSurrealStoreDeleteByID(t *testing.T) {
	st := requireSurreal(t)
	ctx := context.Background()
	owner := "sq-delete-id"
	cleanupOwner(t, st, owner)

	require.NoError(t, st.UpsertMany(ctx, []models.MemoryChunk{
		newChunk("sq-di-1", owner, models.MemoryTypeBio, axisVec(testDimension, 0), baseTime),
		newChunk("sq-di-2", owner, models.MemoryTypeBio, axisVec(testDimension, 1), baseTime),
	}))

	deleted, err := st.DeleteByID(ctx, "sq-di-1", "sq-di-missing")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only chunks that existed count")

	remaining, err := st.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "sq-di-2", remaining[0].ID)
}

func TestSurrealStoreHealth(t *testing.T) {
	st := requireSurreal(t)
	require.NoError(t, st.Health(context.Background()))
}
