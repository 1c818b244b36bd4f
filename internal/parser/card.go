// Package parser provides character card parsing and text chunking.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reverie-ai/reverie/internal/models"
)

// Card is a character definition file: YAML frontmatter carrying the
// structured fields, followed by an optional free-form backstory body.
type Card struct {
	ID          string
	Name        string
	Owner       string
	Identity    string
	Appearance  string
	Voice       string
	Personality string
	Goals       string
	Boundaries  string
	Persona     string

	// Body is everything after the frontmatter block.
	Body string
}

// cardFrontmatter mirrors the YAML block of a card file. Field order here
// is the order RenderCard writes back.
type cardFrontmatter struct {
	ID          string `yaml:"id,omitempty"`
	Name        string `yaml:"name"`
	Owner       string `yaml:"owner,omitempty"`
	Identity    string `yaml:"identity,omitempty"`
	Appearance  string `yaml:"appearance,omitempty"`
	Voice       string `yaml:"voice,omitempty"`
	Personality string `yaml:"personality,omitempty"`
	Goals       string `yaml:"goals,omitempty"`
	Boundaries  string `yaml:"boundaries,omitempty"`
	Persona     string `yaml:"persona,omitempty"`
}

// ParseCard parses a character card. Unlike note ingestion, a card without
// a valid frontmatter block or a name is a data error, not something to
// paper over.
func ParseCard(content string) (*Card, error) {
	fmText, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	var fm cardFrontmatter
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return nil, fmt.Errorf("parse card frontmatter: %w", err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return nil, fmt.Errorf("card has no name")
	}

	return &Card{
		ID:          fm.ID,
		Name:        fm.Name,
		Owner:       fm.Owner,
		Identity:    fm.Identity,
		Appearance:  fm.Appearance,
		Voice:       fm.Voice,
		Personality: fm.Personality,
		Goals:       fm.Goals,
		Boundaries:  fm.Boundaries,
		Persona:     fm.Persona,
		Body:        strings.TrimSpace(body),
	}, nil
}

// splitFrontmatter separates the YAML block from the body.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	if !strings.HasPrefix(content, "---\n") {
		return "", "", fmt.Errorf("card is missing the frontmatter block")
	}
	endIdx := strings.Index(content[4:], "\n---")
	if endIdx < 0 {
		return "", "", fmt.Errorf("card frontmatter is not terminated")
	}
	frontmatter = content[4 : 4+endIdx]
	body = strings.TrimPrefix(content[4+endIdx+4:], "\n")
	return frontmatter, body, nil
}

// Character converts the card into the engine's character model.
func (c *Card) Character() models.Character {
	return models.Character{
		ID:                 c.ID,
		OwnerID:            c.Owner,
		Name:               c.Name,
		Identity:           c.Identity,
		Appearance:         c.Appearance,
		Voice:              c.Voice,
		Personality:        c.Personality,
		Goals:              c.Goals,
		Boundaries:         c.Boundaries,
		Backstory:          c.Body,
		CorePersonaSummary: c.Persona,
	}
}

// RenderCard serializes a character back into card file form, preserving
// the body. Used to persist the regenerated persona summary.
func RenderCard(ch models.Character, body string) ([]byte, error) {
	fm := cardFrontmatter{
		ID:          ch.ID,
		Name:        ch.Name,
		Owner:       ch.OwnerID,
		Identity:    ch.Identity,
		Appearance:  ch.Appearance,
		Voice:       ch.Voice,
		Personality: ch.Personality,
		Goals:       ch.Goals,
		Boundaries:  ch.Boundaries,
		Persona:     ch.CorePersonaSummary,
	}

	out, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("render card frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n")
	if body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}
