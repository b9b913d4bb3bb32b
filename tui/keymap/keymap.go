package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/grovetools/rdebug/config"
	"github.com/grovetools/rdebug/logging"
)

// Overrides maps snake_case binding names to replacement keys, e.g.
// {"confirm": ["enter", "l"]}.
type Overrides map[string][]string

// Settings is the "tui" config extension as far as key bindings go.
type Settings struct {
	Preset      string    `yaml:"preset"`
	Keybindings Overrides `yaml:"keybindings"`
}

// Base contains the bindings shared by rdebug's pickers.
type Base struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Confirm  key.Binding
	Quit     key.Binding
	Help     key.Binding
}

// NewBase returns the default (vim) bindings.
func NewBase() Base {
	return DefaultVim()
}

// DefaultVim returns vim-style bindings with arrow keys as aliases.
func DefaultVim() Base {
	return Base{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("C-u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("C-d", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// DefaultArrows returns bindings without letter keys, so typing never
// moves the cursor by accident.
func DefaultArrows() Base {
	base := DefaultVim()
	base.Up = key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up"))
	base.Down = key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down"))
	base.Top = key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "top"))
	base.Bottom = key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "bottom"))
	base.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit"))
	return base
}

// Load builds the bindings from the "tui" config extension: the preset
// (vim or arrows) first, then per-binding overrides.
func Load(cfg *config.Config) Base {
	var settings Settings
	if cfg != nil {
		// A malformed section leaves the defaults in place.
		_ = cfg.UnmarshalExtension("tui", &settings)
	}

	var base Base
	switch settings.Preset {
	case "arrows":
		base = DefaultArrows()
	default:
		base = DefaultVim()
	}

	if unknown := ApplyOverrides(&base, settings.Keybindings); len(unknown) > 0 {
		logging.NewLogger("tui").WithField("actions", unknown).Warn("Ignoring unknown keybinding overrides")
	}
	return base
}

// ShortHelp implements help.KeyMap.
func (k Base) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Confirm, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k Base) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Confirm, k.Quit, k.Help},
	}
}
