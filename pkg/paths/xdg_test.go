package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDirPrecedence(t *testing.T) {
	t.Run("portable root", func(t *testing.T) {
		t.Setenv("RDEBUG_HOME", "/opt/rdebug")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, "/opt/rdebug/config", ConfigDir())
		assert.Equal(t, "/opt/rdebug/state/logs", LogDir())
	})

	t.Run("xdg", func(t *testing.T) {
		t.Setenv("RDEBUG_HOME", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		t.Setenv("XDG_STATE_HOME", "/xdgstate")
		assert.Equal(t, "/xdg/rdebug", ConfigDir())
		assert.Equal(t, "/xdgstate/rdebug", StateDir())
	})

	t.Run("home defaults", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("RDEBUG_HOME", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_STATE_HOME", "")
		t.Setenv("HOME", home)
		assert.Equal(t, filepath.Join(home, ".config", "rdebug"), ConfigDir())
		assert.Equal(t, []string{
			filepath.Join(home, ".config", "rdebug", "config.yml"),
			filepath.Join(home, ".config", "rdebug", "config.yaml"),
			filepath.Join(home, ".config", "rdebug", "config.toml"),
		}, GlobalConfigCandidates())
	})
}
