package watch

import "github.com/charmbracelet/lipgloss"

// Theme holds the lipgloss styles for the watch TUI.
type Theme struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Succeeded lipgloss.Style
	Rejected  lipgloss.Style
	Failed    lipgloss.Style
	Dim       lipgloss.Style
	ErrorBar  lipgloss.Style
}

// NewDefaultTheme returns the default color scheme.
func NewDefaultTheme() Theme {
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		Succeeded: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Rejected:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		ErrorBar:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}
