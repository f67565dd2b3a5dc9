package theme

import "github.com/charmbracelet/lipgloss"

// Styles are the terminal styles for CLI output under a theme.
type Styles struct {
	Title lipgloss.Style
	OK    lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style
	Muted lipgloss.Style
}

func StylesFor(t Theme) Styles {
	if t == Dark {
		return Styles{
			Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f5c2e7")),
			OK:    lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")),
			Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
			Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
			Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8")),
		}
	}
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ea76cb")),
		OK:    lipgloss.NewStyle().Foreground(lipgloss.Color("#40a02b")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#df8e1d")),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#d20f39")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6c6f85")),
	}
}
