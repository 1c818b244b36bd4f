package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/reverie-ai/reverie/internal/models"
)

// ChromemStore persists chunks in chromem-go, a pure Go embedded vector
// database. One collection per character keeps owners isolated without
// row-level filters.
type ChromemStore struct {
	db        *chromem.DB
	dimension int
}

var _ Store = (*ChromemStore)(nil)

// OpenChromemStore creates an embedded store. A non-empty ChromemPath
// persists collections to disk; otherwise everything stays in memory.
func OpenChromemStore(cfg Config) (*ChromemStore, error) {
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = 384
	}

	if cfg.ChromemPath != "" {
		db, err := chromem.NewPersistentDB(cfg.ChromemPath, false)
		if err != nil {
			return nil, fmt.Errorf("%w: open chromem at %s: %v", ErrStore, cfg.ChromemPath, err)
		}
		return &ChromemStore{db: db, dimension: dimension}, nil
	}

	return &ChromemStore{db: chromem.NewDB(), dimension: dimension}, nil
}

// collection returns the character's collection, creating it on first
// use. GetOrCreateCollection is safe for concurrent callers.
func (s *ChromemStore) collection(characterID string) (*chromem.Collection, error) {
	name := "char-" + characterID
	// Embeddings are always supplied by the caller; no embedding func.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %v", ErrStore, name, err)
	}
	return col, nil
}

func chunkToDocument(chunk models.MemoryChunk) chromem.Document {
	return chromem.Document{
		ID:        chunk.ID,
		Content:   chunk.Content,
		Embedding: chunk.Embedding,
		Metadata: map[string]string{
			"character_id":     chunk.CharacterID,
			"memory_type":      string(chunk.MemoryType),
			"emotional_weight": strconv.FormatFloat(chunk.EmotionalWeight, 'f', -1, 64),
			"importance":       string(chunk.Importance),
			"created_at":       chunk.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func documentToChunk(id, content string, embedding []float32, metadata map[string]string) models.MemoryChunk {
	weight, _ := strconv.ParseFloat(metadata["emotional_weight"], 64)
	createdAt, _ := time.Parse(time.RFC3339Nano, metadata["created_at"])
	return models.MemoryChunk{
		ID:              id,
		CharacterID:     metadata["character_id"],
		Content:         content,
		MemoryType:      models.MemoryType(metadata["memory_type"]),
		Embedding:       embedding,
		EmotionalWeight: weight,
		Importance:      models.ParseImportance(metadata["importance"]),
		CreatedAt:       createdAt,
	}
}

// UpsertMany replaces documents by ID. chromem has no native upsert, so
// an existing document is deleted before its replacement is added.
func (s *ChromemStore) UpsertMany(ctx context.Context, chunks []models.MemoryChunk) error {
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return errMissingChunkID
		}

		col, err := s.collection(chunk.CharacterID)
		if err != nil {
			return err
		}

		if _, err := col.GetByID(ctx, chunk.ID); err == nil {
			if err := col.Delete(ctx, nil, nil, chunk.ID); err != nil {
				return fmt.Errorf("%w: replace chunk %s: %v", ErrStore, chunk.ID, err)
			}
		}

		if err := col.AddDocument(ctx, chunkToDocument(chunk)); err != nil {
			return fmt.Errorf("%w: add chunk %s: %v", ErrStore, chunk.ID, err)
		}
	}
	return nil
}

// DeleteByOwnerAndType removes all chunks of one type for a character.
func (s *ChromemStore) DeleteByOwnerAndType(ctx context.Context, characterID string, memoryType models.MemoryType) (int, error) {
	col, err := s.collection(characterID)
	if err != nil {
		return 0, err
	}

	// chromem reports no delete count; writers are serialized per
	// character above this layer, so the count diff is stable.
	before := col.Count()
	err = col.Delete(ctx, map[string]string{"memory_type": string(memoryType)}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: delete by owner and type: %v", ErrStore, err)
	}
	return before - col.Count(), nil
}

// QueryTopK ranks the character's chunks by cosine similarity.
func (s *ChromemStore) QueryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return []models.ScoredChunk{}, nil
	}

	col, err := s.collection(characterID)
	if err != nil {
		return nil, err
	}

	// nResults must not exceed the collection size.
	n := col.Count()
	if n == 0 {
		return []models.ScoredChunk{}, nil
	}
	if k < n {
		n = k
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query top k: %v", ErrStore, err)
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, result := range results {
		chunk := documentToChunk(result.ID, result.Content, result.Embedding, result.Metadata)
		scored = append(scored, models.ScoredChunk{
			MemoryChunk: chunk,
			Similarity:  float64(result.Similarity),
		})
	}
	sortScored(scored)
	return scored, nil
}

// ListByOwner enumerates a collection by querying it with a fixed unit
// vector and asking for every document.
func (s *ChromemStore) ListByOwner(ctx context.Context, characterID string) ([]models.MemoryChunk, error) {
	col, err := s.collection(characterID)
	if err != nil {
		return nil, err
	}

	n := col.Count()
	if n == 0 {
		return []models.MemoryChunk{}, nil
	}

	probe := make([]float32, s.dimension)
	probe[0] = 1

	results, err := col.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list by owner: %v", ErrStore, err)
	}

	chunks := make([]models.MemoryChunk, 0, len(results))
	for _, result := range results {
		chunks = append(chunks, documentToChunk(result.ID, result.Content, result.Embedding, result.Metadata))
	}
	sortChunksByAge(chunks)
	return chunks, nil
}

// DeleteByID removes chunks by ID, searching every collection since the
// interface does not scope ids to a character.
func (s *ChromemStore) DeleteByID(ctx context.Context, ids ...string) (int, error) {
	deleted := 0
	for _, id := range ids {
		for _, col := range s.db.ListCollections() {
			if _, err := col.GetByID(ctx, id); err != nil {
				continue
			}
			if err := col.Delete(ctx, nil, nil, id); err != nil {
				return deleted, fmt.Errorf("%w: delete chunk %s: %v", ErrStore, id, err)
			}
			deleted++
			break
		}
	}
	return deleted, nil
}

// CountByOwner returns the number of chunks owned by a character.
func (s *ChromemStore) CountByOwner(_ context.Context, characterID string) (int, error) {
	col, err := s.collection(characterID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Health always passes; the database is embedded.
func (s *ChromemStore) Health(_ context.Context) error {
	return nil
}

// Close is a no-op; persistent collections flush on every write.
func (s *ChromemStore) Close(_ context.Context) error {
	return nil
}
