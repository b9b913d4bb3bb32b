package keymap

import (
	"testing"

	"github.com/grovetools/rdebug/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVim(t *testing.T) {
	km := DefaultVim()
	assert.Equal(t, []string{"k", "up"}, km.Up.Keys())
	assert.Equal(t, []string{"j", "down"}, km.Down.Keys())
	assert.Equal(t, []string{"enter"}, km.Confirm.Keys())
	assert.Contains(t, km.Quit.Keys(), "q")
}

func TestDefaultArrows(t *testing.T) {
	km := DefaultArrows()
	assert.Equal(t, []string{"up"}, km.Up.Keys())
	assert.NotContains(t, km.Quit.Keys(), "q")
}

func TestLoadNilConfig(t *testing.T) {
	assert.Equal(t, DefaultVim().Up.Keys(), Load(nil).Up.Keys())
}

func TestLoadPresetAndOverrides(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(`
tui:
  preset: arrows
  keybindings:
    confirm: [enter, l]
`), "yaml")
	require.NoError(t, err)

	km := Load(cfg)
	assert.Equal(t, []string{"up"}, km.Up.Keys())
	assert.Equal(t, []string{"enter", "l"}, km.Confirm.Keys())
	assert.Equal(t, "select", km.Confirm.Help().Desc)
}

func TestHelp(t *testing.T) {
	km := NewBase()
	assert.Len(t, km.ShortHelp(), 5)
	require.Len(t, km.FullHelp(), 2)
	assert.Len(t, km.FullHelp()[0], 6)
}
