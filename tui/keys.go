package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	NextTab    key.Binding
	PrevTab    key.Binding
	Up         key.Binding
	Down       key.Binding
	Add        key.Binding
	Delete     key.Binding
	Send       key.Binding
	Stop       key.Binding
	Mode       key.Binding
	Priority   key.Binding
	Locality   key.Binding
	Rename     key.Binding
	EditKey    key.Binding
	EditValue  key.Binding
	EditEncode key.Binding
	Clear      key.Binding
	Timeout    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next page"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "prev page"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect/subscribe/send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "disconnect/unsubscribe"),
		),
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "congestion/target"),
		),
		Priority: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "priority/consolidation"),
		),
		Locality: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "origin"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename"),
		),
		EditKey: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit key"),
		),
		EditValue: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "edit value"),
		),
		EditEncode: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "encoding"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Timeout: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "timeout"),
		),
	}
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.NextTab, k.Add, k.Send, k.Stop, k.EditKey, k.EditValue, k.Quit}
}
