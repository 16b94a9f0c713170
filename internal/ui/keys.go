package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send     key.Binding
	Dictate  key.Binding
	Play     key.Binding
	Stop     key.Binding
	Voice    key.Binding
	Prev     key.Binding
	Next     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Dictate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "dictate"),
		),
		Play: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "play/stop"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop audio"),
		),
		Voice: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "next voice"),
		),
		Prev: key.NewBinding(
			key.WithKeys("ctrl+up", "alt+k"),
			key.WithHelp("ctrl+↑", "prev reply"),
		),
		Next: key.NewBinding(
			key.WithKeys("ctrl+down", "alt+j"),
			key.WithHelp("ctrl+↓", "next reply"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Help: key.NewBinding(
			// "?" only counts while the input is empty, see Model.handleKey
			key.WithKeys("ctrl+_", "f1", "?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Dictate, k.Play, k.Voice, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Dictate, k.Play, k.Stop},
		{k.Voice, k.Prev, k.Next},
		{k.PageUp, k.PageDown, k.Help, k.Quit},
	}
}
