package characters_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/characters"
)

const nyraCard = `---
id: char-nyra
name: Nyra
owner: user-7
identity: A wandering cartographer who maps forgotten coastlines.
personality: Dry wit, endless patience with strangers.
---

Nyra grew up in a lighthouse and learned to read from tide charts.
`

const katoCard = `---
name: Kato
voice: Speaks in short, clipped sentences.
---
`

func writeCard(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDirSourceGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCard(t, dir, "nyra.md", nyraCard)
	writeCard(t, dir, "kato.md", katoCard)

	src := characters.NewDirSource(dir)

	ch, err := src.Get(ctx, "char-nyra")
	require.NoError(t, err)
	assert.Equal(t, "Nyra", ch.Name)
	assert.Equal(t, "user-7", ch.OwnerID)
	assert.Contains(t, ch.Backstory, "lighthouse")

	// Without an explicit id the filename addresses the card.
	ch, err = src.Get(ctx, "kato")
	require.NoError(t, err)
	assert.Equal(t, "Kato", ch.Name)

	_, err = src.Get(ctx, "char-unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, characters.ErrCharacterNotFound)
}

func TestDirSourceList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeCard(t, dir, "nyra.md", nyraCard)
	writeCard(t, dir, "kato.md", katoCard)
	writeCard(t, dir, "notes.txt", "not a card")
	writeCard(t, dir, "broken.md", "no frontmatter here")

	src := characters.NewDirSource(dir)

	chars, err := src.List(ctx)
	require.NoError(t, err)
	require.Len(t, chars, 2, "non-card and invalid files are skipped")
	assert.Equal(t, "char-nyra", chars[0].ID)
	assert.Equal(t, "kato", chars[1].ID)
}

func TestDirSourceSavePersona(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeCard(t, dir, "nyra.md", nyraCard)

	src := characters.NewDirSource(dir)
	require.NoError(t, src.SavePersona(ctx, "char-nyra", "Nyra is a dry-witted cartographer."))

	ch, err := src.Get(ctx, "char-nyra")
	require.NoError(t, err)
	assert.Equal(t, "Nyra is a dry-witted cartographer.", ch.CorePersonaSummary)
	assert.Contains(t, ch.Backstory, "lighthouse", "write-back must preserve the body")
	assert.Equal(t, "user-7", ch.OwnerID, "write-back must preserve editor fields")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "persona: Nyra is a dry-witted cartographer.")
}

func TestDirSourceSavePersonaKeepsDerivedIDImplicit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeCard(t, dir, "kato.md", katoCard)

	src := characters.NewDirSource(dir)
	require.NoError(t, src.SavePersona(ctx, "kato", "Kato speaks plainly."))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "id:", "a filename-derived id stays out of the frontmatter")

	ch, err := src.Get(ctx, "kato")
	require.NoError(t, err)
	assert.Equal(t, "Kato speaks plainly.", ch.CorePersonaSummary)
}

func TestDirSourceSavePersonaUnknownCharacter(t *testing.T) {
	src := characters.NewDirSource(t.TempDir())
	err := src.SavePersona(context.Background(), "char-unknown", "persona")
	require.Error(t, err)
	assert.ErrorIs(t, err, characters.ErrCharacterNotFound)
}

func TestDirSourceHealth(t *testing.T) {
	ctx := context.Background()

	src := characters.NewDirSource(t.TempDir())
	assert.NoError(t, src.Health(ctx))

	missing := characters.NewDirSource(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, missing.Health(ctx))
}
