package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary   = lipgloss.Color("4")
	secondary = lipgloss.Color("245")
	success   = lipgloss.Color("2")
	danger    = lipgloss.Color("1")
	highlight = lipgloss.Color("12")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	progressStyle = lipgloss.NewStyle().
			Foreground(secondary).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	focusedStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	invalidStyle = lipgloss.NewStyle().
			Foreground(danger)

	stepStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	activeControlStyle = lipgloss.NewStyle().
				Foreground(success).
				Bold(true)

	inactiveControlStyle = lipgloss.NewStyle().
				Foreground(secondary).
				Faint(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(success)
)
