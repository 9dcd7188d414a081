package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause key.Binding
	Step      key.Binding
	Restart   key.Binding
	Next      key.Binding
	Prev      key.Binding
	Clear     key.Binding
	Scenario  key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Step:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "single step")),
	Restart:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Next:      key.NewBinding(key.WithKeys("tab", "j", "down"), key.WithHelp("tab/j", "next agent")),
	Prev:      key.NewBinding(key.WithKeys("shift+tab", "k", "up"), key.WithHelp("k", "previous agent")),
	Clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear selection")),
	Scenario:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "next scenario")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Step, k.Restart, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Step, k.Restart, k.Scenario},
		{k.Next, k.Prev, k.Clear},
		{k.Help, k.Quit},
	}
}
