// Package models defines the data structures shared across the memory engine.
package models

// Character is a dialogue persona owned by a single user. The descriptive
// fields are authored by the external character editor; FullBio and
// CorePersonaSummary are derived during ingestion and are never mutated by
// retrieval.
type Character struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id,omitempty"`
	Name    string `json:"name"`

	// Structured biography fields. Any of these may be empty; empty fields
	// are omitted from the assembled biography rather than rendered blank.
	Identity    string `json:"identity,omitempty"`
	Appearance  string `json:"appearance,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Personality string `json:"personality,omitempty"`
	Goals       string `json:"goals,omitempty"`
	Boundaries  string `json:"boundaries,omitempty"`

	// Backstory is free-form biography text (the card body), appended
	// after the structured fields.
	Backstory string `json:"backstory,omitempty"`

	// FullBio is the ordered concatenation of the fields above.
	FullBio string `json:"full_bio,omitempty"`

	// CorePersonaSummary is the condensed persona sent on every dialogue
	// turn. Regenerated wholesale on each ingestion.
	CorePersonaSummary string `json:"core_persona_summary,omitempty"`
}

// IngestStats summarizes a single character ingestion.
type IngestStats struct {
	ChunksCreated    int  `json:"chunks_created"`
	PersonaGenerated bool `json:"persona_generated"`
}

// CharacterResult reports the per-character outcome of a batch ingestion.
// A failed character carries its error here instead of aborting the batch.
type CharacterResult struct {
	CharacterID string       `json:"character_id"`
	Name        string       `json:"name,omitempty"`
	Stats       *IngestStats `json:"stats,omitempty"`
	Error       string       `json:"error,omitempty"`
}
