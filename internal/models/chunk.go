package models

import (
	"time"
)

// MemoryType tags a chunk with its origin. Retrieval treats the vocabulary
// as open: new categories rank like any other, only pruning distinguishes
// biography chunks from the rest.
type MemoryType string

const (
	// MemoryTypeBio marks chunks derived from the character biography.
	// Replaced wholesale on re-ingestion, never evicted by pruning.
	MemoryTypeBio MemoryType = "bio_chunk"

	// MemoryTypeConversation marks chunks written back from observed
	// conversation turns. Subject to the per-character cap.
	MemoryTypeConversation MemoryType = "conversation"
)

// Importance is the ordinal salience of a memory chunk.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// ParseImportance maps a raw string to an Importance, defaulting to medium
// for unknown or empty values.
func ParseImportance(s string) Importance {
	switch Importance(s) {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return Importance(s)
	default:
		return ImportanceMedium
	}
}

// Weight returns the retention weight used by pruning, in (0,1].
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceLow:
		return 0.25
	case ImportanceHigh:
		return 1.0
	default:
		return 0.5
	}
}

// Boost returns the ranking multiplier used by retrieval, always >= 1.
func (i Importance) Boost() float64 {
	switch i {
	case ImportanceHigh:
		return 1.25
	case ImportanceMedium:
		return 1.1
	default:
		return 1.0
	}
}

// MemoryChunk is one retrievable memory belonging to exactly one character.
//
// Invariants: Content is non-empty, Embedding carries the store-wide fixed
// dimension, and a chunk whose embedding failed is never written to the
// store.
type MemoryChunk struct {
	ID              string     `json:"id"`
	CharacterID     string     `json:"character_id"`
	Content         string     `json:"content"`
	MemoryType      MemoryType `json:"memory_type"`
	Embedding       []float32  `json:"embedding,omitempty"`
	EmotionalWeight float64    `json:"emotional_weight"`
	Importance      Importance `json:"importance"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ScoredChunk pairs a chunk with its raw cosine similarity to a query
// vector, as returned by the store's top-k lookup.
type ScoredChunk struct {
	MemoryChunk
	Similarity float64 `json:"similarity"`
}

// MemoryMeta carries optional attributes for a written-back conversation
// memory. Nil fields fall back to defaults (weight 0.5, importance medium).
type MemoryMeta struct {
	EmotionalWeight *float64   `json:"emotional_weight,omitempty"`
	Importance      Importance `json:"importance,omitempty"`
}
