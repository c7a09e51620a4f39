package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start       key.Binding
	Match       key.Binding
	Back        key.Binding
	Quit        key.Binding
	Audio       key.Binding
	Visual      key.Binding
	AudioVisual key.Binding
	Speak       key.Binding

	home bool
}

func newKeyMap() keyMap {
	return keyMap{
		Start:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
		Match:       key.NewBinding(key.WithKeys(" ", "space", "m"), key.WithHelp("space", "match")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Quit:        key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Audio:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "audio")),
		Visual:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "visual")),
		AudioVisual: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "both")),
		Speak:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle speech")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	if k.home {
		return []key.Binding{k.Start, k.Audio, k.Visual, k.AudioVisual, k.Speak, k.Quit}
	}
	return []key.Binding{k.Match, k.Start, k.Back, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
