// Package entity defines the closed set of catalog content kinds that can be
// referenced from a rich-text description.
package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies the kind of catalog entity a reference points at.
type Type string

const (
	Rule    Type = "Rule"
	Ability Type = "Ability"
	Feat    Type = "Feat"
	Spell   Type = "Spell"
)

// Default is assumed for references stored before multi-type support existed.
const Default = Rule

// StatusActive marks entities that may be suggested as references.
const StatusActive = "active"

var (
	ErrNotFound    = errors.New("entity not found")
	ErrUnknownType = errors.New("unknown entity type")
)

// All lists every type in the default presentation order.
func All() []Type {
	return []Type{Rule, Ability, Feat, Spell}
}

// Parse accepts the canonical name or the collection plural, ignoring case.
func Parse(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rule", "rules":
		return Rule, nil
	case "ability", "abilities":
		return Ability, nil
	case "feat", "feats":
		return Feat, nil
	case "spell", "spells":
		return Spell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, raw)
	}
}

// ParseOrDefault never fails; unknown or empty input maps to Default.
func ParseOrDefault(raw string) Type {
	t, err := Parse(raw)
	if err != nil {
		return Default
	}
	return t
}

func (t Type) String() string {
	return string(t)
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case Rule, Ability, Feat, Spell:
		return true
	default:
		return false
	}
}

// Collection is the plural used for tables, indexes and endpoints.
func (t Type) Collection() string {
	switch t {
	case Rule:
		return "rules"
	case Ability:
		return "abilities"
	case Feat:
		return "feats"
	case Spell:
		return "spells"
	default:
		panic(fmt.Sprintf("entity: collection for unknown type %q", string(t)))
	}
}

// Slug is the lowercase form used in CSS classes and cache keys.
func (t Type) Slug() string {
	return strings.ToLower(string(t))
}

// HintKeys lists the type-specific attributes surfaced in search results.
func (t Type) HintKeys() []string {
	switch t {
	case Rule:
		return []string{"category"}
	case Ability:
		return []string{"attribute"}
	case Feat:
		return []string{"category", "prerequisite"}
	case Spell:
		return []string{"circle", "school"}
	default:
		return nil
	}
}
