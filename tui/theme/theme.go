// Package theme holds the lipgloss styles shared by the rdebug CLI and its
// interactive pickers.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/rdebug/config"
)

const defaultThemeName = "kanagawa"

// --- Kanagawa palette (dark / light) ---
const (
	kanagawaDarkGreen   = "#98BB6C"
	kanagawaDarkYellow  = "#FF9E3B"
	kanagawaDarkRed     = "#FF5D62"
	kanagawaDarkOrange  = "#FFA066"
	kanagawaDarkCyan    = "#7E9CD8"
	kanagawaDarkViolet  = "#957FB8"
	kanagawaDarkText    = "#DCD7BA"
	kanagawaDarkMuted   = "#727169"
	kanagawaDarkBorder  = "#363646"
	kanagawaDarkSelect  = "#223249"
	kanagawaLightGreen  = "#4E7C5A"
	kanagawaLightYellow = "#A68A64"
	kanagawaLightRed    = "#C34043"
	kanagawaLightOrange = "#CC6B4E"
	kanagawaLightCyan   = "#5B8BBE"
	kanagawaLightViolet = "#674D7A"
	kanagawaLightText   = "#2B2F42"
	kanagawaLightMuted  = "#6C7086"
	kanagawaLightBorder = "#B5BDC5"
	kanagawaLightSelect = "#E2E6F3"
)

// Colors is the palette a Theme is built from.
type Colors struct {
	Green              lipgloss.TerminalColor
	Yellow             lipgloss.TerminalColor
	Red                lipgloss.TerminalColor
	Orange             lipgloss.TerminalColor
	Cyan               lipgloss.TerminalColor
	Violet             lipgloss.TerminalColor
	Text               lipgloss.TerminalColor
	Muted              lipgloss.TerminalColor
	Border             lipgloss.TerminalColor
	SelectedBackground lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Colors Colors

	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Highlight lipgloss.Style

	// Panel frames the connection details printed when a debugger starts.
	Panel lipgloss.Style
	// Command renders a shell command the user is expected to copy.
	Command lipgloss.Style

	TableHeader lipgloss.Style
	SelectedRow lipgloss.Style
	Placeholder lipgloss.Style
	Cursor      lipgloss.Style
}

var themeRegistry = map[string]func() Colors{
	"kanagawa": newKanagawaColors,
	"terminal": newTerminalColors,
}

// DefaultTheme is resolved once from RDEBUG_THEME or the "tui" config section.
var DefaultTheme = NewTheme()

// NewTheme creates a theme based on the configured theme selection.
func NewTheme() *Theme {
	return NewThemeWithName(getThemeName())
}

// NewThemeWithName constructs a theme from a specific palette name. Unknown
// names fall back to the default palette.
func NewThemeWithName(name string) *Theme {
	builder, ok := themeRegistry[normalizeThemeName(name)]
	if !ok {
		builder = themeRegistry[defaultThemeName]
	}
	return newThemeFromColors(builder())
}

// RenderStatus renders text with the appropriate status style.
func RenderStatus(status, text string) string {
	switch status {
	case "success":
		return DefaultTheme.Success.Render(text)
	case "error":
		return DefaultTheme.Error.Render(text)
	case "warning":
		return DefaultTheme.Warning.Render(text)
	case "info":
		return DefaultTheme.Info.Render(text)
	default:
		return text
	}
}

func newThemeFromColors(colors Colors) *Theme {
	return &Theme{
		Colors: colors,

		Title: lipgloss.NewStyle().Bold(true).Underline(true),

		Success: lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),

		Bold:      lipgloss.NewStyle().Bold(true),
		Muted:     lipgloss.NewStyle().Faint(true),
		Accent:    lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),
		Highlight: lipgloss.NewStyle().Foreground(colors.Orange).Bold(true),

		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colors.Violet).
			Padding(0, 1),

		Command: lipgloss.NewStyle().Foreground(colors.Green),

		TableHeader: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colors.Border),

		SelectedRow: lipgloss.NewStyle().
			Background(colors.SelectedBackground).
			Foreground(colors.Text),

		Placeholder: lipgloss.NewStyle().Foreground(colors.Muted).Italic(true),
		Cursor:      lipgloss.NewStyle().Foreground(colors.Orange).Bold(true),
	}
}

func normalizeThemeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "_", "-")
	return normalized
}

func getThemeName() string {
	if theme := normalizeThemeName(os.Getenv("RDEBUG_THEME")); theme != "" {
		return theme
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}

	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil {
		if theme := normalizeThemeName(tuiCfg.Theme); theme != "" {
			return theme
		}
	}

	return defaultThemeName
}

func newKanagawaColors() Colors {
	return Colors{
		Green:              lipgloss.AdaptiveColor{Light: kanagawaLightGreen, Dark: kanagawaDarkGreen},
		Yellow:             lipgloss.AdaptiveColor{Light: kanagawaLightYellow, Dark: kanagawaDarkYellow},
		Red:                lipgloss.AdaptiveColor{Light: kanagawaLightRed, Dark: kanagawaDarkRed},
		Orange:             lipgloss.AdaptiveColor{Light: kanagawaLightOrange, Dark: kanagawaDarkOrange},
		Cyan:               lipgloss.AdaptiveColor{Light: kanagawaLightCyan, Dark: kanagawaDarkCyan},
		Violet:             lipgloss.AdaptiveColor{Light: kanagawaLightViolet, Dark: kanagawaDarkViolet},
		Text:               lipgloss.AdaptiveColor{Light: kanagawaLightText, Dark: kanagawaDarkText},
		Muted:              lipgloss.AdaptiveColor{Light: kanagawaLightMuted, Dark: kanagawaDarkMuted},
		Border:             lipgloss.AdaptiveColor{Light: kanagawaLightBorder, Dark: kanagawaDarkBorder},
		SelectedBackground: lipgloss.AdaptiveColor{Light: kanagawaLightSelect, Dark: kanagawaDarkSelect},
	}
}

// newTerminalColors uses the plain ANSI palette, for terminals where the
// user's own color scheme should win.
func newTerminalColors() Colors {
	return Colors{
		Green:              lipgloss.Color("2"),
		Yellow:             lipgloss.Color("3"),
		Red:                lipgloss.Color("1"),
		Orange:             lipgloss.Color("208"),
		Cyan:               lipgloss.Color("6"),
		Violet:             lipgloss.Color("5"),
		Text:               lipgloss.Color("7"),
		Muted:              lipgloss.Color("8"),
		Border:             lipgloss.Color("8"),
		SelectedBackground: lipgloss.Color("8"),
	}
}
