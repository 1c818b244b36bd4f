package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/service"
)

func fullCharacter() *models.Character {
	return &models.Character{
		ID:          "char-nyra",
		Name:        "Nyra",
		Identity:    "An exiled cartographer of drowned coastlines.",
		Appearance:  "Salt-bleached coat, ink-stained fingers.",
		Voice:       "Speaks in clipped nautical metaphors.",
		Personality: "Wry, guarded, loyal once trust is earned.",
		Goals:       "Chart every shore the floods erased.",
		Boundaries:  "Never discusses the night the lighthouse went dark.",
		Backstory:   "She grew up on a barge and learned to read from tide tables.",
	}
}

func TestBuildFullBioOrder(t *testing.T) {
	bio := service.BuildFullBio(fullCharacter())

	positions := []int{
		strings.Index(bio, "Identity:"),
		strings.Index(bio, "Appearance:"),
		strings.Index(bio, "Voice:"),
		strings.Index(bio, "Personality:"),
		strings.Index(bio, "Goals:"),
		strings.Index(bio, "Boundaries:"),
		strings.Index(bio, "She grew up on a barge"),
	}
	for i, pos := range positions {
		require.GreaterOrEqual(t, pos, 0, "section %d missing", i)
		if i > 0 {
			assert.Greater(t, pos, positions[i-1], "section %d out of order", i)
		}
	}
}

func TestBuildFullBioOmitsEmptyFields(t *testing.T) {
	bio := service.BuildFullBio(&models.Character{
		ID:       "char-min",
		Identity: "A quiet archivist.",
		Goals:    "Catalog the uncatalogable.",
	})

	assert.Contains(t, bio, "Identity: A quiet archivist.")
	assert.Contains(t, bio, "Goals: Catalog the uncatalogable.")
	for _, absent := range []string{"Appearance:", "Voice:", "Personality:", "Boundaries:"} {
		assert.NotContains(t, bio, absent)
	}
	assert.False(t, strings.HasPrefix(bio, "\n"))
	assert.False(t, strings.HasSuffix(bio, "\n"))
}

func TestBuildFullBioEmptyCharacter(t *testing.T) {
	assert.Empty(t, service.BuildFullBio(&models.Character{ID: "char-blank"}))
}

func TestCondensePersonaFieldPriority(t *testing.T) {
	persona := service.CondensePersona(fullCharacter())

	// Short fields all fit; identity-defining content must lead.
	positions := []int{
		strings.Index(persona, "exiled cartographer"),
		strings.Index(persona, "Wry, guarded"),
		strings.Index(persona, "clipped nautical"),
		strings.Index(persona, "Chart every shore"),
		strings.Index(persona, "Never discusses"),
		strings.Index(persona, "Salt-bleached"),
		strings.Index(persona, "grew up on a barge"),
	}
	for i, pos := range positions {
		require.GreaterOrEqual(t, pos, 0, "field %d missing", i)
		if i > 0 {
			assert.Greater(t, pos, positions[i-1], "field %d out of order", i)
		}
	}
}

func TestCondensePersonaCutsAtSentenceNearTarget(t *testing.T) {
	// 42 sentences of 8 words each; the cut lands exactly when the word
	// budget fills at a sentence boundary.
	ch := &models.Character{
		ID:       "char-long",
		Identity: strings.TrimSpace(strings.Repeat("The lighthouse keeper counts the ships at dawn. ", 42)),
	}

	persona := service.CondensePersona(ch)
	words := strings.Fields(persona)
	assert.Len(t, words, 200)
	assert.True(t, strings.HasSuffix(persona, "."), "persona should end on a sentence boundary")
}

func TestCondensePersonaHardCap(t *testing.T) {
	// One unbroken run with no sentence boundaries cannot be cut at a
	// sentence, so only the hard word cap applies.
	ch := &models.Character{
		ID:       "char-runon",
		Identity: strings.TrimSpace(strings.Repeat("word ", 400)),
	}

	persona := service.CondensePersona(ch)
	assert.Len(t, strings.Fields(persona), 300)
}

func TestCondensePersonaEmpty(t *testing.T) {
	assert.Empty(t, service.CondensePersona(&models.Character{ID: "char-blank"}))
}

func TestCondensePersonaDeterministic(t *testing.T) {
	ch := fullCharacter()
	assert.Equal(t, service.CondensePersona(ch), service.CondensePersona(ch))
}
