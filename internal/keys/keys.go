package keys

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
)

// Quit cancels an interactive form.
var Quit = key.NewBinding(
	key.WithKeys("ctrl+c", "esc"),
	key.WithHelp("esc", "cancel"),
)

// FormKeyMap returns huh's default bindings with Quit replaced so that esc
// also aborts the form.
func FormKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = Quit
	return km
}
