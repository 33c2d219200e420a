package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the console palette.
type Styles struct {
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Separator lipgloss.Style
	Status    lipgloss.Style
	Input     lipgloss.Style
}

// DefaultStyles returns the neon-on-navy palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff416c")).
			Padding(0, 1),
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00c6ff")),
		Assistant: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff416c")),
		Separator: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3a3f5c")),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8a8fa8")).
			Italic(true),
		Input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00c6ff")).
			Padding(0, 1),
	}
}
