package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Back     key.Binding
	Next     key.Binding
	Prev     key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Snapshot key.Binding
	Record   key.Binding
	Pause    key.Binding
	Open     key.Binding
	Save     key.Binding
	Add      key.Binding
	Remove   key.Binding
	Seek     key.Binding
	SeekBack key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	Confirm  key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
	Prev:     key.NewBinding(key.WithKeys("shift+tab")),
	Up:       key.NewBinding(key.WithKeys("up")),
	Down:     key.NewBinding(key.WithKeys("down")),
	Left:     key.NewBinding(key.WithKeys("left")),
	Right:    key.NewBinding(key.WithKeys("right")),
	Snapshot: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "png")),
	Record:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "record")),
	Pause:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "pause")),
	Open:     key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "open")),
	Save:     key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "save flyer")),
	Add:      key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "add card")),
	Remove:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "remove card")),
	Seek:     key.NewBinding(key.WithKeys("shift+right")),
	SeekBack: key.NewBinding(key.WithKeys("shift+left")),
	VolUp:    key.NewBinding(key.WithKeys("shift+up")),
	VolDown:  key.NewBinding(key.WithKeys("shift+down")),
	Confirm:  key.NewBinding(key.WithKeys("enter")),
}

func (k keyMap) ShortHelp(f focusArea) []key.Binding {
	out := []key.Binding{k.Next, k.Snapshot, k.Record, k.Pause, k.Open, k.Save}
	if f == focusSections {
		out = append(out, k.Add, k.Remove)
	}
	return append(out, k.Quit)
}
