package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/dkeye/Consult/internal/domain"
)

type keyMap struct {
	Start     key.Binding
	HangUp    key.Binding
	MuteAudio key.Binding
	MuteVideo key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Start:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start call")),
		HangUp:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hang up")),
		MuteAudio: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mute mic")),
		MuteVideo: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "mute camera")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// apply enables exactly the buttons the phase allows.
func (k *keyMap) apply(c domain.Controls) {
	k.Start.SetEnabled(c.Start)
	k.HangUp.SetEnabled(c.HangUp)
	k.MuteAudio.SetEnabled(c.MuteAudio)
	k.MuteVideo.SetEnabled(c.MuteVideo)
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.HangUp, k.MuteAudio, k.MuteVideo, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
