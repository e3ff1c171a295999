package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header    lipgloss.Style
	status    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	live      lipgloss.Style
	failed    lipgloss.Style
	hint      lipgloss.Style
	err       lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		system:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
		live:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		hint:      lipgloss.NewStyle().Faint(true),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
