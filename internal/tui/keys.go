package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the wizard key bindings.
type KeyMap struct {
	Back      key.Binding
	Next      key.Binding
	Submit    key.Binding
	Focus     key.Binding
	FocusPrev key.Binding
	Toggle    key.Binding
	Delete    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Back: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "back"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		FocusPrev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle/cycle"),
		),
		Delete: key.NewBinding(
			key.WithKeys("backspace"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Back, k.Next, k.Submit, k.Focus, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Back, k.Next, k.Submit},
		{k.Focus, k.FocusPrev, k.Toggle, k.Quit},
	}
}
