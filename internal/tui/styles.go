// Package tui provides the terminal composer and reader for rich-text
// documents with entity references.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"grimoire/internal/entity"
)

// Theme defines the colour palette for the TUI.
type Theme struct {
	Primary    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color

	// Badge colours per entity type.
	Rule    lipgloss.Color
	Ability lipgloss.Color
	Feat    lipgloss.Color
	Spell   lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#7C3AED"), // Purple
		Foreground: lipgloss.Color("#CDD6F4"), // Light gray
		Muted:      lipgloss.Color("#6C7086"), // Medium gray
		Error:      lipgloss.Color("#F38BA8"), // Red
		Border:     lipgloss.Color("#45475A"), // Border gray
		Rule:       lipgloss.Color("#89B4FA"), // Blue
		Ability:    lipgloss.Color("#A6E3A1"), // Green
		Feat:       lipgloss.Color("#F9E2AF"), // Yellow
		Spell:      lipgloss.Color("#FAB387"), // Orange
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style
	Popover  lipgloss.Style
	List     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Help: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Popover: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1).
			Width(60),

		List: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Badge is the inline style of a reference to an entity of type t.
func (s *Styles) Badge(t entity.Type, focused bool) lipgloss.Style {
	var c lipgloss.Color
	switch t {
	case entity.Rule:
		c = s.theme.Rule
	case entity.Ability:
		c = s.theme.Ability
	case entity.Feat:
		c = s.theme.Feat
	case entity.Spell:
		c = s.theme.Spell
	default:
		c = s.theme.Foreground
	}
	style := lipgloss.NewStyle().Foreground(c).Underline(true)
	if focused {
		style = style.Reverse(true).Bold(true)
	}
	return style
}
