package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#2B6CB0")
	colorOK      = lipgloss.Color("#38A169")
	colorWarn    = lipgloss.Color("#D69E2E")
	colorError   = lipgloss.Color("#E53E3E")
	colorSubtext = lipgloss.Color("#A0AEC0")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Width(10)

	valueStyle = lipgloss.NewStyle().Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Width(60)
)

func phaseStyle(active, connected bool) lipgloss.Style {
	switch {
	case connected:
		return valueStyle.Foreground(colorOK)
	case active:
		return valueStyle.Foreground(colorWarn)
	default:
		return valueStyle.Foreground(colorSubtext)
	}
}
