package models

// QueryOptions are per-call overrides for retrieval. Nil fields keep the
// service defaults; values are merged at call time, never stored.
type QueryOptions struct {
	MaxResults      *int     `json:"max_results,omitempty"`
	MinSimilarity   *float64 `json:"min_similarity,omitempty"`
	WeightEmotional *bool    `json:"weight_emotional,omitempty"`
	BoostRecent     *bool    `json:"boost_recent,omitempty"`
}

// RetrievedMemory is one selected memory in a retrieval context.
type RetrievedMemory struct {
	Content    string     `json:"content"`
	MemoryType MemoryType `json:"memory_type"`
}

// RetrievalContext is the per-turn result handed to the dialogue engine:
// the stable persona summary plus the memories relevant to the current
// message, ordered by composite score descending.
type RetrievalContext struct {
	CorePersona      string            `json:"core_persona"`
	RelevantMemories []RetrievedMemory `json:"relevant_memories"`
}
