package characters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reverie-ai/reverie/internal/models"
)

// StaticSource serves a fixed set of characters from memory. Used by
// tests and by host applications that manage characters themselves.
type StaticSource struct {
	mu         sync.RWMutex
	characters map[string]models.Character
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source holding the given characters.
func NewStaticSource(chars ...models.Character) *StaticSource {
	m := make(map[string]models.Character, len(chars))
	for _, ch := range chars {
		m[ch.ID] = ch
	}
	return &StaticSource{characters: m}
}

func (s *StaticSource) Get(_ context.Context, id string) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	}
	return &ch, nil
}

func (s *StaticSource) List(_ context.Context) ([]models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Character, 0, len(s.characters))
	for _, ch := range s.characters {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *StaticSource) SavePersona(_ context.Context, id, persona string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.characters[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
	}
	ch.CorePersonaSummary = persona
	s.characters[id] = ch
	return nil
}

func (s *StaticSource) Health(_ context.Context) error {
	return nil
}
