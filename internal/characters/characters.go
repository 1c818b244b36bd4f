// Package characters resolves dialogue personas from the external
// character editor and persists the fields ingestion derives.
package characters

import (
	"context"
	"errors"

	"github.com/reverie-ai/reverie/internal/models"
)

// ErrCharacterNotFound indicates an unknown character id.
var ErrCharacterNotFound = errors.New("character not found")

// Source is the narrow boundary to character data. The editor owns the
// descriptive fields; the engine reads them and writes back only the
// persona summary it derives.
type Source interface {
	// Get returns one character, ErrCharacterNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.Character, error)

	// List returns every character the source knows about.
	List(ctx context.Context) ([]models.Character, error)

	// SavePersona persists a regenerated persona summary.
	SavePersona(ctx context.Context, id, persona string) error

	// Health verifies the source is reachable.
	Health(ctx context.Context) error
}
