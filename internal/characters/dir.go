package characters

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/parser"
)

// DirSource reads character cards from a flat directory, one Markdown
// file per character. Files are re-read on every call so edits made
// while the engine runs are picked up without a restart.
type DirSource struct {
	dir string
}

var _ Source = (*DirSource)(nil)

// NewDirSource creates a source over a card directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// cardFile pairs a parsed character with the file it came from, so
// persona write-back lands in the right place.
type cardFile struct {
	path      string
	body      string
	character models.Character

	// derivedID means the id came from the filename, not the
	// frontmatter; write-back must not materialize it.
	derivedID bool
}

func (s *DirSource) loadCard(path string) (*cardFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card: %w", err)
	}

	card, err := parser.ParseCard(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse card %s: %w", filepath.Base(path), err)
	}

	ch := card.Character()
	derived := false
	// A card without an explicit id is addressed by its filename.
	if ch.ID == "" {
		base := filepath.Base(path)
		ch.ID = strings.TrimSuffix(base, filepath.Ext(base))
		derived = true
	}
	return &cardFile{path: path, body: card.Body, character: ch, derivedID: derived}, nil
}

// loadAll parses every card in the directory. Unparsable files are
// skipped with a warning; the editor may hold partial saves.
func (s *DirSource) loadAll() ([]cardFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan character directory: %w", err)
	}

	var cards []cardFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".markdown" {
			continue
		}

		card, err := s.loadCard(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping invalid character card", "file", entry.Name(), "error", err)
			continue
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

func (s *DirSource) find(id string) (*cardFile, error) {
	cards, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if cards[i].character.ID == id {
			return &cards[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, id)
}

func (s *DirSource) Get(_ context.Context, id string) (*models.Character, error) {
	card, err := s.find(id)
	if err != nil {
		return nil, err
	}
	ch := card.character
	return &ch, nil
}

func (s *DirSource) List(_ context.Context) ([]models.Character, error) {
	cards, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	out := make([]models.Character, 0, len(cards))
	for _, card := range cards {
		out = append(out, card.character)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SavePersona rewrites the character's card with the new persona in its
// frontmatter, leaving every editor-owned field and the body untouched.
func (s *DirSource) SavePersona(_ context.Context, id, persona string) error {
	card, err := s.find(id)
	if err != nil {
		return err
	}

	ch := card.character
	ch.CorePersonaSummary = persona
	if card.derivedID {
		ch.ID = ""
	}

	out, err := parser.RenderCard(ch, card.body)
	if err != nil {
		return fmt.Errorf("render card for %s: %w", id, err)
	}
	if err := os.WriteFile(card.path, out, 0o644); err != nil {
		return fmt.Errorf("write card for %s: %w", id, err)
	}
	return nil
}

func (s *DirSource) Health(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("character directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("character path is not a directory: %s", s.dir)
	}
	return nil
}
