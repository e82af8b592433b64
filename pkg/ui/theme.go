package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/flatree/pkg/model"
)

// Theme holds the colors and styles the views render with. Styles are built
// from Renderer so tests can render without a terminal.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
}

// DefaultTheme returns the default palette bound to r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#F1FA8C"},
		Highlight: lipgloss.AdaptiveColor{Light: "#0B7285", Dark: "#8BE9FD"},
		Muted:     lipgloss.AdaptiveColor{Light: "#868E96", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#495057", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#CED4DA", Dark: "#44475A"},
	}
	t.Base = r.NewStyle()
	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E9ECEF", Dark: "#44475A"}).
		Bold(true)
	t.Status = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#F8F9FA", Dark: "#282A36"}).
		Background(t.Primary).
		Padding(0, 1)
	t.Error = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#C92A2A", Dark: "#FF5555"}).
		Bold(true)
	return t
}

// KindIcon returns the icon and color for a node kind.
func (t Theme) KindIcon(k model.Kind) (string, lipgloss.AdaptiveColor) {
	switch k {
	case model.KindDir, model.KindGroup:
		return k.Icon(), t.Highlight
	case model.KindRecord:
		return k.Icon(), t.Primary
	case model.KindValue:
		return k.Icon(), t.Secondary
	default:
		return k.Icon(), t.Subtext
	}
}
