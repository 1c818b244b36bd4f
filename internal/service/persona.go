package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/reverie-ai/reverie/internal/llm"
	"github.com/reverie-ai/reverie/internal/models"
)

const (
	// personaTargetWords is the soft length the condensed persona aims for.
	personaTargetWords = 200

	// personaMaxWords is the hard cap. Over-length summaries are truncated
	// in every path, never propagated.
	personaMaxWords = 300
)

// personaSystemPrompt steers provider-assisted persona condensation.
const personaSystemPrompt = `You condense character biographies into persona summaries for a dialogue engine.
Write a single plain-text paragraph of at most 200 words, third person, present tense.
Keep who the character is, how they speak, what they want, and their hard limits.
Do not invent facts that are not in the biography. Do not use headings or lists.`

// BuildFullBio assembles a character's complete biography from its
// structured fields in a fixed order, with the free-form backstory last.
// Empty fields are omitted entirely, never rendered as blank sections.
func BuildFullBio(ch *models.Character) string {
	sections := []struct {
		heading string
		text    string
	}{
		{"Identity", ch.Identity},
		{"Appearance", ch.Appearance},
		{"Voice", ch.Voice},
		{"Personality", ch.Personality},
		{"Goals", ch.Goals},
		{"Boundaries", ch.Boundaries},
	}

	var b strings.Builder
	for _, s := range sections {
		text := strings.TrimSpace(s.text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.heading)
		b.WriteString(": ")
		b.WriteString(text)
	}

	if backstory := strings.TrimSpace(ch.Backstory); backstory != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(backstory)
	}

	return b.String()
}

// CondensePersona derives the per-turn persona summary from a character
// without provider assistance. Identity-defining fields come first, text
// is cut at a sentence boundary near the target length, and the result
// never exceeds the hard word cap. Deterministic for a given character.
func CondensePersona(ch *models.Character) string {
	parts := make([]string, 0, 7)
	for _, field := range []string{
		ch.Identity, ch.Personality, ch.Voice,
		ch.Goals, ch.Boundaries, ch.Appearance, ch.Backstory,
	} {
		if f := strings.TrimSpace(field); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	condensed := cutAtSentence(strings.Join(parts, " "), personaTargetWords)
	return clampWords(condensed, personaMaxWords)
}

// condensePersona regenerates the persona summary, provider-assisted when a
// generation model is configured. Provider failures fall back to the
// rule-based summary so ingestion always produces a persona.
func (s *IngestService) condensePersona(ctx context.Context, ch *models.Character) string {
	if s.model == nil || ch.FullBio == "" {
		return CondensePersona(ch)
	}

	out, err := s.model.GenerateWithSystem(ctx, personaSystemPrompt, ch.FullBio)
	if err != nil {
		if errors.Is(err, llm.ErrFatalAPI) {
			slog.Error("persona model rejected the request, using rule-based summary",
				"character", ch.ID, "error", err)
		} else {
			slog.Warn("persona model unavailable, using rule-based summary",
				"character", ch.ID, "error", err)
		}
		return CondensePersona(ch)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return CondensePersona(ch)
	}
	return clampWords(out, personaMaxWords)
}

// cutAtSentence returns the leading sentences of text up to roughly the
// given word budget. At least one sentence is always kept.
func cutAtSentence(text string, budget int) string {
	var b strings.Builder
	count := 0
	for _, sentence := range splitSentences(text) {
		n := len(strings.Fields(sentence))
		if count > 0 && count+n > budget {
			break
		}
		b.WriteString(sentence)
		count += n
		if count >= budget {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// splitSentences cuts text after sentence-ending punctuation or a newline.
// The terminator stays with its sentence so rejoining is lossless.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && text[i+1] == ' ' {
				out = append(out, text[start:i+2])
				start = i + 2
				i++
			}
		case '\n':
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// clampWords truncates text to at most max words. The fast path returns the
// text untouched; only an over-cap summary gets whitespace-normalized.
func clampWords(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) <= max {
		return text
	}
	return strings.Join(fields[:max], " ")
}
