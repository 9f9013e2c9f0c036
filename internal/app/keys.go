package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI. Plain letters are
// left to the command input except inside the debug overlay.
type KeyMap struct {
	Run      key.Binding
	NextEnv  key.Binding
	PrevEnv  key.Binding
	Debug    key.Binding
	Port     key.Binding
	Retry    key.Binding
	Pane     key.Binding
	ScrollUp key.Binding
	ScrollDn key.Binding
	Log      key.Binding
	LogKind  key.Binding
	LogScope key.Binding
	Help     key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Run: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run command"),
		),
		NextEnv: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next environment"),
		),
		PrevEnv: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous environment"),
		),
		Debug: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "toggle debug mode"),
		),
		Port: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "cycle target port"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "retry connection"),
		),
		Pane: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "switch output pane"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "up"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDn: key.NewBinding(
			key.WithKeys("pgdown", "down"),
			key.WithHelp("pgdown", "scroll down"),
		),
		Log: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "debug log"),
		),
		LogKind: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "debug log: filter by kind"),
		),
		LogScope: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "debug log: current session only"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// Bindings lists the bindings shown in the help overlay.
func (k KeyMap) Bindings() []key.Binding {
	return []key.Binding{
		k.Run, k.NextEnv, k.PrevEnv, k.Debug, k.Port, k.Retry,
		k.Pane, k.ScrollUp, k.ScrollDn, k.Log, k.LogKind, k.LogScope, k.Help, k.Escape, k.Quit,
	}
}
