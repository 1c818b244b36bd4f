package store

import (
	"context"
	"sync"

	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/models"
)

// MemoryStore is a brute-force in-memory vector store guarded by an
// RWMutex. At the chunk counts this engine caps per character, a linear
// cosine scan beats index maintenance; swap in a disk backend when the
// corpus outgrows a process.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]models.MemoryChunk // chunk ID -> chunk
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]models.MemoryChunk)}
}

// UpsertMany inserts or replaces chunks by ID.
func (s *MemoryStore) UpsertMany(_ context.Context, chunks []models.MemoryChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return errMissingChunkID
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// DeleteByOwnerAndType removes every chunk of one memory type owned by
// a character.
func (s *MemoryStore) DeleteByOwnerAndType(_ context.Context, characterID string, memoryType models.MemoryType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, chunk := range s.chunks {
		if chunk.CharacterID == characterID && chunk.MemoryType == memoryType {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

// QueryTopK scans the character's chunks and ranks them by cosine
// similarity descending, ties by chunk ID ascending.
func (s *MemoryStore) QueryTopK(_ context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return []models.ScoredChunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []models.ScoredChunk
	for _, chunk := range s.chunks {
		if chunk.CharacterID != characterID {
			continue
		}
		sim, err := embedding.Cosine(vector, chunk.Embedding)
		if err != nil {
			// A stored vector of the wrong dimension can never match.
			continue
		}
		scored = append(scored, models.ScoredChunk{MemoryChunk: chunk, Similarity: sim})
	}

	sortScored(scored)

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// ListByOwner returns all chunks owned by a character, oldest first.
func (s *MemoryStore) ListByOwner(_ context.Context, characterID string) ([]models.MemoryChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MemoryChunk
	for _, chunk := range s.chunks {
		if chunk.CharacterID == characterID {
			out = append(out, chunk)
		}
	}

	sortChunksByAge(out)
	return out, nil
}

// DeleteByID removes chunks by ID.
func (s *MemoryStore) DeleteByID(_ context.Context, ids ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.chunks[id]; ok {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

// CountByOwner returns the number of chunks owned by a character.
func (s *MemoryStore) CountByOwner(_ context.Context, characterID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, chunk := range s.chunks {
		if chunk.CharacterID == characterID {
			count++
		}
	}
	return count, nil
}

// Health always passes; the store lives in process memory.
func (s *MemoryStore) Health(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
