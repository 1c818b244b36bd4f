package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reverie-ai/reverie/internal/models"
)

// pgSchemaStatements initialize the memory_chunks table. Statements run
// one at a time; the pgx extended protocol rejects multi-statement strings.
func pgSchemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_chunks (
			id               TEXT PRIMARY KEY,
			character_id     TEXT NOT NULL,
			content          TEXT NOT NULL,
			memory_type      TEXT NOT NULL,
			embedding        vector(%d) NOT NULL,
			emotional_weight DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			importance       TEXT NOT NULL DEFAULT 'medium',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS memory_chunks_owner ON memory_chunks (character_id)`,
		`CREATE INDEX IF NOT EXISTS memory_chunks_owner_type ON memory_chunks (character_id, memory_type)`,
		`CREATE INDEX IF NOT EXISTS memory_chunks_embedding ON memory_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
}

// pgChunk maps to the memory_chunks table.
type pgChunk struct {
	ID              string `gorm:"primaryKey"`
	CharacterID     string
	Content         string
	MemoryType      string
	Embedding       pgvector.Vector `gorm:"type:vector"`
	EmotionalWeight float64
	Importance      string
	CreatedAt       time.Time
}

func (pgChunk) TableName() string {
	return "memory_chunks"
}

func (r pgChunk) toModel() models.MemoryChunk {
	return models.MemoryChunk{
		ID:              r.ID,
		CharacterID:     r.CharacterID,
		Content:         r.Content,
		MemoryType:      models.MemoryType(r.MemoryType),
		Embedding:       r.Embedding.Slice(),
		EmotionalWeight: r.EmotionalWeight,
		Importance:      models.ParseImportance(r.Importance),
		CreatedAt:       r.CreatedAt,
	}
}

// PostgresStore persists chunks in PostgreSQL using the pgvector
// extension for cosine search.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgresStore connects, pings, and initializes the schema.
func OpenPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", ErrStore, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap sql db: %v", ErrStore, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStore, err)
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 384
	}
	for _, stmt := range pgSchemaStatements(dimension) {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%w: init schema: %v", ErrStore, err)
		}
	}

	return &PostgresStore{db: db}, nil
}

// UpsertMany inserts or replaces chunks by ID in a single statement.
func (s *PostgresStore) UpsertMany(ctx context.Context, chunks []models.MemoryChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]pgChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return errMissingChunkID
		}
		records = append(records, pgChunk{
			ID:              chunk.ID,
			CharacterID:     chunk.CharacterID,
			Content:         chunk.Content,
			MemoryType:      string(chunk.MemoryType),
			Embedding:       pgvector.NewVector(chunk.Embedding),
			EmotionalWeight: chunk.EmotionalWeight,
			Importance:      string(chunk.Importance),
			CreatedAt:       chunk.CreatedAt,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("%w: upsert chunks: %v", ErrStore, err)
	}
	return nil
}

// DeleteByOwnerAndType removes all chunks of one type for a character.
func (s *PostgresStore) DeleteByOwnerAndType(ctx context.Context, characterID string, memoryType models.MemoryType) (int, error) {
	result := s.db.WithContext(ctx).
		Where("character_id = ? AND memory_type = ?", characterID, string(memoryType)).
		Delete(&pgChunk{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: delete by owner and type: %v", ErrStore, result.Error)
	}
	return int(result.RowsAffected), nil
}

// pgScoredRow is the scan target for similarity queries.
type pgScoredRow struct {
	ID              string
	CharacterID     string
	Content         string
	MemoryType      string
	Embedding       pgvector.Vector
	EmotionalWeight float64
	Importance      string
	CreatedAt       time.Time
	Similarity      float64
}

// QueryTopK ranks the character's chunks by cosine similarity.
func (s *PostgresStore) QueryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return []models.ScoredChunk{}, nil
	}

	var rows []pgScoredRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT id, character_id, content, memory_type, embedding,
		       emotional_weight, importance, created_at,
		       1 - (embedding <=> ?) AS similarity
		FROM memory_chunks
		WHERE character_id = ?
		ORDER BY similarity DESC, id ASC
		LIMIT ?`,
		pgvector.NewVector(vector), characterID, k,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query top k: %v", ErrStore, err)
	}

	scored := make([]models.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		scored = append(scored, models.ScoredChunk{
			MemoryChunk: pgChunk{
				ID:              row.ID,
				CharacterID:     row.CharacterID,
				Content:         row.Content,
				MemoryType:      row.MemoryType,
				Embedding:       row.Embedding,
				EmotionalWeight: row.EmotionalWeight,
				Importance:      row.Importance,
				CreatedAt:       row.CreatedAt,
			}.toModel(),
			Similarity: row.Similarity,
		})
	}
	return scored, nil
}

// ListByOwner returns all chunks owned by a character, oldest first.
func (s *PostgresStore) ListByOwner(ctx context.Context, characterID string) ([]models.MemoryChunk, error) {
	var records []pgChunk
	err := s.db.WithContext(ctx).
		Where("character_id = ?", characterID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list by owner: %v", ErrStore, err)
	}

	chunks := make([]models.MemoryChunk, 0, len(records))
	for _, record := range records {
		chunks = append(chunks, record.toModel())
	}
	return chunks, nil
}

// DeleteByID removes chunks by ID, returning how many existed.
func (s *PostgresStore) DeleteByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&pgChunk{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: delete by id: %v", ErrStore, result.Error)
	}
	return int(result.RowsAffected), nil
}

// CountByOwner returns the number of chunks owned by a character.
func (s *PostgresStore) CountByOwner(ctx context.Context, characterID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&pgChunk{}).
		Where("character_id = ?", characterID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count by owner: %v", ErrStore, err)
	}
	return int(count), nil
}

// Health pings the connection pool.
func (s *PostgresStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: unwrap sql db: %v", ErrStore, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}
