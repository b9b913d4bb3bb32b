package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithName(t *testing.T) {
	terminal := NewThemeWithName("Terminal")
	assert.Equal(t, newTerminalColors(), terminal.Colors)

	fallback := NewThemeWithName("does-not-exist")
	assert.Equal(t, newKanagawaColors(), fallback.Colors)
}

func TestGetThemeNameFromEnv(t *testing.T) {
	t.Setenv("RDEBUG_THEME", " Terminal ")
	assert.Equal(t, "terminal", getThemeName())
}

func TestRenderStatusUnknownPassesThrough(t *testing.T) {
	assert.Equal(t, "plain", RenderStatus("other", "plain"))
}
