package sidebar

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Close   key.Binding
	NewTab  key.Binding
	Quit    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// 'c' matches the tmux default for new-window; 'n' is kept as an alias.
func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "switch")),
		Close:   key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("x", "close")),
		NewTab:  key.NewBinding(key.WithKeys("c", "n"), key.WithHelp("c", "new")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm: key.NewBinding(key.WithKeys("y", "Y")),
		Cancel:  key.NewBinding(key.WithKeys("n", "N", "esc")),
	}
}
