package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Mode      key.Binding
	Tool      key.Binding
	Layout    key.Binding
	Color     key.Binding
	Highlight key.Binding
	Deselect  key.Binding
	Cancel    key.Binding
	Reset     key.Binding
	Help      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Mode:      key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "zoom/select")),
		Tool:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "brush/lasso")),
		Layout:    key.NewBinding(key.WithKeys("n", "tab"), key.WithHelp("n", "next layout")),
		Color:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "color by")),
		Highlight: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "highlight category")),
		Deselect:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "deselect")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel gesture")),
		Reset:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset view")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Tool, k.Layout, k.Color, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.Tool, k.Deselect, k.Cancel},
		{k.Layout, k.Color, k.Highlight, k.Reset},
		{k.Help, k.Quit},
	}
}
