package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/reverie-ai/reverie/internal/models"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// surrealSchemaSQL initializes the memory_chunk table. The HNSW index
// dimension is bound to the embedder's output at open time.
const surrealSchemaSQL = `
    DEFINE TABLE IF NOT EXISTS memory_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS character_id ON memory_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON memory_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS memory_type ON memory_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON memory_chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS emotional_weight ON memory_chunk TYPE float DEFAULT 0.5;
    DEFINE FIELD IF NOT EXISTS importance ON memory_chunk TYPE string DEFAULT 'medium';
    DEFINE FIELD IF NOT EXISTS created_at ON memory_chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS memory_chunk_character ON memory_chunk FIELDS character_id;
    DEFINE INDEX IF NOT EXISTS memory_chunk_owner_type ON memory_chunk FIELDS character_id, memory_type;
    DEFINE INDEX IF NOT EXISTS memory_chunk_embedding ON memory_chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

// SurrealStore persists chunks in SurrealDB over an auto-reconnecting
// WebSocket connection.
type SurrealStore struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

var _ Store = (*SurrealStore)(nil)

// OpenSurrealStore connects, authenticates, selects the namespace and
// database, and initializes the schema.
func OpenSurrealStore(ctx context.Context, cfg Config) (*SurrealStore, error) {
	sdkLogger := logger.New(slog.Default().Handler())

	// surrealcbor handles SurrealDB custom CBOR tags (record ids, datetimes).
	codec := surrealcbor.New()

	// gorillaws requires ws:// or wss:// URL without /rpc suffix (it adds /rpc internally)
	baseURL := strings.TrimSuffix(cfg.SurrealURL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLogger.Info("connecting to SurrealDB", "url", cfg.SurrealURL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStore, err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: from connection: %v", ErrStore, err)
	}

	if _, err := db.SignIn(ctx, surrealdb.Auth{
		Username: cfg.SurrealUsername,
		Password: cfg.SurrealPassword,
	}); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: signin: %v", ErrStore, err)
	}

	if err := db.Use(ctx, cfg.SurrealNamespace, cfg.SurrealDatabase); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("%w: use: %v", ErrStore, err)
	}

	s := &SurrealStore{conn: conn, db: db, logger: sdkLogger}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 384
	}
	if err := s.initSchema(ctx, dimension); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Info("SurrealDB store ready", "dimension", dimension)
	return s, nil
}

func (s *SurrealStore) initSchema(ctx context.Context, dimension int) error {
	sql := fmt.Sprintf(surrealSchemaSQL, dimension)
	if _, err := surrealdb.Query[any](ctx, s.db, sql, nil); err != nil {
		return fmt.Errorf("%w: init schema: %v", ErrStore, err)
	}
	return nil
}

// surrealChunk is the row shape of the memory_chunk table.
type surrealChunk struct {
	ID              surrealmodels.RecordID `json:"id"`
	CharacterID     string                 `json:"character_id"`
	Content         string                 `json:"content"`
	MemoryType      string                 `json:"memory_type"`
	Embedding       []float32              `json:"embedding"`
	EmotionalWeight float64                `json:"emotional_weight"`
	Importance      string                 `json:"importance"`
	CreatedAt       time.Time              `json:"created_at"`
	Similarity      float64                `json:"similarity,omitempty"`
}

func (r surrealChunk) toModel() (models.MemoryChunk, error) {
	id, ok := r.ID.ID.(string)
	if !ok {
		return models.MemoryChunk{}, fmt.Errorf("%w: unexpected record id type %T", ErrStore, r.ID.ID)
	}
	return models.MemoryChunk{
		ID:              id,
		CharacterID:     r.CharacterID,
		Content:         r.Content,
		MemoryType:      models.MemoryType(r.MemoryType),
		Embedding:       r.Embedding,
		EmotionalWeight: r.EmotionalWeight,
		Importance:      models.ParseImportance(r.Importance),
		CreatedAt:       r.CreatedAt,
	}, nil
}

// UpsertMany writes chunks one UPSERT at a time; ids are stable so the
// operation is idempotent.
func (s *SurrealStore) UpsertMany(ctx context.Context, chunks []models.MemoryChunk) error {
	sql := `
		UPSERT type::record("memory_chunk", $id) SET
			character_id = $character_id,
			content = $content,
			memory_type = $memory_type,
			embedding = $embedding,
			emotional_weight = $emotional_weight,
			importance = $importance,
			created_at = type::datetime($created_at)
	`

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return errMissingChunkID
		}
		_, err := surrealdb.Query[any](ctx, s.db, sql, map[string]any{
			"id":               chunk.ID,
			"character_id":     chunk.CharacterID,
			"content":          chunk.Content,
			"memory_type":      string(chunk.MemoryType),
			"embedding":        chunk.Embedding,
			"emotional_weight": chunk.EmotionalWeight,
			"importance":       string(chunk.Importance),
			"created_at":       chunk.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("%w: upsert chunk %s: %v", ErrStore, chunk.ID, err)
		}
	}
	return nil
}

// DeleteByOwnerAndType removes all chunks of one type for a character.
func (s *SurrealStore) DeleteByOwnerAndType(ctx context.Context, characterID string, memoryType models.MemoryType) (int, error) {
	sql := `
		DELETE memory_chunk
		WHERE character_id = $character_id AND memory_type = $memory_type
		RETURN BEFORE
	`
	results, err := surrealdb.Query[[]surrealChunk](ctx, s.db, sql, map[string]any{
		"character_id": characterID,
		"memory_type":  string(memoryType),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete by owner and type: %v", ErrStore, err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// QueryTopK runs a KNN search scoped to the character. The KNN operator
// over-fetches before the owner filter applies, so the candidate count
// is widened to keep k results reachable on shared tables.
func (s *SurrealStore) QueryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return []models.ScoredChunk{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT *, vector::similarity::cosine(embedding, $emb) AS similarity
		FROM memory_chunk
		WHERE character_id = $character_id AND embedding <|%d,40|> $emb
		ORDER BY similarity DESC, id ASC
		LIMIT $k
	`, k*4)

	results, err := surrealdb.Query[[]surrealChunk](ctx, s.db, sql, map[string]any{
		"character_id": characterID,
		"emb":          vector,
		"k":            k,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query top k: %v", ErrStore, err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ScoredChunk{}, nil
	}

	rows := (*results)[0].Result
	scored := make([]models.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		chunk, err := row.toModel()
		if err != nil {
			return nil, err
		}
		scored = append(scored, models.ScoredChunk{MemoryChunk: chunk, Similarity: row.Similarity})
	}
	return scored, nil
}

// ListByOwner returns all chunks owned by a character, oldest first.
func (s *SurrealStore) ListByOwner(ctx context.Context, characterID string) ([]models.MemoryChunk, error) {
	sql := `
		SELECT * FROM memory_chunk
		WHERE character_id = $character_id
		ORDER BY created_at ASC, id ASC
	`
	results, err := surrealdb.Query[[]surrealChunk](ctx, s.db, sql, map[string]any{
		"character_id": characterID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list by owner: %v", ErrStore, err)
	}

	if results == nil || len(*results) == 0 {
		return []models.MemoryChunk{}, nil
	}

	rows := (*results)[0].Result
	chunks := make([]models.MemoryChunk, 0, len(rows))
	for _, row := range rows {
		chunk, err := row.toModel()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// DeleteByID removes chunks by ID, returning how many existed.
func (s *SurrealStore) DeleteByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sql := `DELETE memory_chunk WHERE record::id(id) IN $ids RETURN BEFORE`

	results, err := surrealdb.Query[[]surrealChunk](ctx, s.db, sql, map[string]any{
		"ids": ids,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete by id: %v", ErrStore, err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// CountByOwner returns the number of chunks owned by a character.
func (s *SurrealStore) CountByOwner(ctx context.Context, characterID string) (int, error) {
	sql := `
		SELECT count() AS c FROM memory_chunk
		WHERE character_id = $character_id
		GROUP ALL
	`
	type countRow struct {
		C int `json:"c"`
	}
	results, err := surrealdb.Query[[]countRow](ctx, s.db, sql, map[string]any{
		"character_id": characterID,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count by owner: %v", ErrStore, err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// Health runs a trivial query over the live connection.
func (s *SurrealStore) Health(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "RETURN 1", nil); err != nil {
		return fmt.Errorf("%w: health: %v", ErrStore, err)
	}
	return nil
}

// Close closes the SurrealDB connection.
func (s *SurrealStore) Close(ctx context.Context) error {
	s.logger.Info("closing SurrealDB connection")
	return s.conn.Close(ctx)
}
