package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Tour     key.Binding
	Next     key.Binding
	Previous key.Binding
	Podcast  key.Binding
	Live     key.Binding
	Mute     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "select step"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "select step"),
		),
		Tour: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "start/stop tour"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "n", "l"),
			key.WithHelp("→/n", "next step"),
		),
		Previous: key.NewBinding(
			key.WithKeys("left", "p", "h"),
			key.WithHelp("←/p", "previous step"),
		),
		Podcast: key.NewBinding(
			key.WithKeys("P", "b"),
			key.WithHelp("b", "podcast briefing"),
		),
		Live: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "talk to Paddy"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute ambience"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tour, k.Podcast, k.Live, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Tour},
		{k.Next, k.Previous},
		{k.Podcast, k.Live, k.Mute},
		{k.Help, k.Quit},
	}
}
