// Package store persists character memory chunks and serves vector
// similarity queries across pluggable backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/reverie-ai/reverie/internal/models"
)

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStore classifies backend failures (connection, query, decode).
	// Callers decide between surfacing and degrading based on it.
	ErrStore = errors.New("memory store error")

	// ErrUnknownBackend indicates an unrecognized backend name in config.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// errMissingChunkID rejects upserts without a stable identifier; upsert
// semantics depend on one.
var errMissingChunkID = fmt.Errorf("%w: chunk has no ID", ErrStore)

// Store is the persistence boundary of the memory engine. Implementations
// must be safe for concurrent use.
type Store interface {
	// UpsertMany inserts or replaces chunks by ID. Chunks must carry a
	// non-empty ID and an embedding.
	UpsertMany(ctx context.Context, chunks []models.MemoryChunk) error

	// DeleteByOwnerAndType removes every chunk of one memory type owned
	// by a character, returning how many were removed.
	DeleteByOwnerAndType(ctx context.Context, characterID string, memoryType models.MemoryType) (int, error)

	// QueryTopK returns up to k chunks owned by the character, ordered by
	// cosine similarity to the query vector descending, ties broken by
	// chunk ID ascending. Chunks of every memory type participate.
	QueryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error)

	// ListByOwner returns all chunks owned by a character.
	ListByOwner(ctx context.Context, characterID string) ([]models.MemoryChunk, error)

	// DeleteByID removes chunks by ID, returning how many existed.
	DeleteByID(ctx context.Context, ids ...string) (int, error)

	// CountByOwner returns the number of chunks owned by a character.
	CountByOwner(ctx context.Context, characterID string) (int, error)

	// Health verifies the backend is reachable.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// BackendType identifies a store backend.
type BackendType string

const (
	// BackendMemory keeps chunks in process memory. Default; also the
	// store used by tests.
	BackendMemory BackendType = "memory"

	// BackendSurreal persists to SurrealDB with an HNSW cosine index.
	BackendSurreal BackendType = "surreal"

	// BackendPostgres persists to PostgreSQL with the pgvector extension.
	BackendPostgres BackendType = "postgres"

	// BackendChromem persists to an embedded chromem-go database.
	BackendChromem BackendType = "chromem"
)

// Config holds store configuration for all backends.
type Config struct {
	// Backend selects the implementation. Empty means memory.
	Backend BackendType

	// Dimension is the embedding dimension the backend indexes.
	// Must match the embedder's output dimension.
	Dimension int

	// SurrealDB connection settings.
	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUsername  string
	SurrealPassword  string

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// ChromemPath persists the chromem backend to disk when set;
	// empty keeps it purely in memory.
	ChromemPath string
}

// Open constructs the configured backend and initializes its schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil

	case BackendSurreal:
		return OpenSurrealStore(ctx, cfg)

	case BackendPostgres:
		return OpenPostgresStore(ctx, cfg)

	case BackendChromem:
		return OpenChromemStore(cfg)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// sortScored orders results by similarity descending, ties broken by
// chunk ID ascending. Backends without server-side ordering share it.
func sortScored(scored []models.ScoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})
}

// sortChunksByAge orders chunks oldest first, ties broken by chunk ID.
func sortChunksByAge(chunks []models.MemoryChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if !chunks[i].CreatedAt.Equal(chunks[j].CreatedAt) {
			return chunks[i].CreatedAt.Before(chunks[j].CreatedAt)
		}
		return chunks[i].ID < chunks[j].ID
	})
}
