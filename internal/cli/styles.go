package cli

import "github.com/charmbracelet/lipgloss"

// outputStyles are the colors shared by the sign and verify reports.
type outputStyles struct {
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	key     lipgloss.Style
	dim     lipgloss.Style
}

func newOutputStyles() *outputStyles {
	return &outputStyles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D7FF")),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF87")),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),
		failure: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F5F")),
		key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D7FF")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}
