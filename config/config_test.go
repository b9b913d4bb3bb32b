package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/rdebug/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config location at a temp dir so the developer's
// own files never leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RDEBUG_HOME", home)
	for _, key := range []string{
		"RDEBUG_PREFERRED_PORT", "RDEBUG_LOCAL_PORT", "RDEBUG_BIND_ADDRESS",
		"RDEBUG_DLV", "RDEBUG_SIGNAL", "RDEBUG_SCHEDULER_TIMEOUT",
		"RDEBUG_LAUNCH_PATH", "RDEBUG_MAX_IDLE",
	} {
		t.Setenv(key, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5679, cfg.Debug.PreferredPort)
	assert.Equal(t, 5678, cfg.Debug.LocalPort)
	assert.Equal(t, "0.0.0.0", cfg.Debug.BindAddress)
	assert.Equal(t, "SIGUSR1", cfg.Debug.Signal)
	assert.Equal(t, ".vscode/launch.json", cfg.Launch.Path)
	assert.Equal(t, "squeue", cfg.Scheduler.Squeue)
	assert.Zero(t, cfg.MaxIdle())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromBytesYAML(t *testing.T) {
	data := `
debug:
  preferred_port: 6000
  signal: USR2
post_mortem:
  max_idle: 2h
logging:
  level: debug
`
	cfg, err := LoadFromBytes([]byte(data), "yaml")
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Debug.PreferredPort)
	assert.Equal(t, "USR2", cfg.Debug.Signal)
	assert.Equal(t, "2h", cfg.PostMortem.MaxIdle)
	assert.Contains(t, cfg.Extensions, "logging")
	assert.NotContains(t, cfg.Extensions, "debug")
}

func TestLoadFromBytesTOML(t *testing.T) {
	data := `
[debug]
local_port = 7000

[tui]
theme = "gruvbox"
`
	cfg, err := LoadFromBytes([]byte(data), "toml")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Debug.LocalPort)

	var tui struct {
		Theme string `yaml:"theme"`
	}
	require.NoError(t, cfg.UnmarshalExtension("tui", &tui))
	assert.Equal(t, "gruvbox", tui.Theme)
}

func TestLoadFromBytesInvalid(t *testing.T) {
	_, err := LoadFromBytes([]byte("debug: [unterminated"), "yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RDEBUG_TEST_PORT", "6100")
	cfg, err := LoadFromBytes([]byte("debug:\n  preferred_port: ${RDEBUG_TEST_PORT}\n  dlv_path: ${RDEBUG_TEST_UNSET:-/opt/dlv}\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 6100, cfg.Debug.PreferredPort)
	assert.Equal(t, "/opt/dlv", cfg.Debug.DlvPath)
}

func TestLayeredLoading(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "config", "config.yml"), `
debug:
  preferred_port: 6000
  local_port: 6001
scheduler:
  timeout: 10s
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".rdebug.yml"), `
debug:
  preferred_port: 7000
`)
	nested := filepath.Join(project, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	t.Setenv("RDEBUG_LOCAL_PORT", "8001")

	logger := logrus.New()
	cfg, err := LoadFromWithLogger(nested, logger)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Debug.PreferredPort, "project overrides global")
	assert.Equal(t, 8001, cfg.Debug.LocalPort, "env overrides files")
	assert.Equal(t, "10s", cfg.Scheduler.Timeout, "global survives when not overridden")
	assert.Equal(t, DefaultBindAddress, cfg.Debug.BindAddress, "defaults fill the rest")
}

func TestLoadFromWithoutFiles(t *testing.T) {
	isolate(t)
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferredPort, cfg.Debug.PreferredPort)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port too large", func(c *Config) { c.Debug.PreferredPort = 70000 }, "debug.preferred_port"},
		{"negative local port", func(c *Config) { c.Debug.LocalPort = -1 }, "debug.local_port"},
		{"bad bind address", func(c *Config) { c.Debug.BindAddress = "not-an-ip" }, "debug.bind_address"},
		{"bad signal", func(c *Config) { c.Debug.Signal = "SIGNOPE" }, "debug.signal"},
		{"bad duration", func(c *Config) { c.Scheduler.Timeout = "soon" }, "scheduler.timeout"},
		{"negative max idle", func(c *Config) { c.PostMortem.MaxIdle = "-1m" }, "post_mortem.max_idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))

			rdErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, rdErr.Detail("field"))
		})
	}
}

func TestEnvOverrideInvalidPortRejected(t *testing.T) {
	isolate(t)
	t.Setenv("RDEBUG_PREFERRED_PORT", "99999")
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestFindConfigFileNotFound(t *testing.T) {
	_, err := FindConfigFile(t.TempDir())
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema struct {
		Title      string                 `json:"title"`
		Properties map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "rdebug configuration", schema.Title)
	for _, section := range []string{"debug", "scheduler", "launch", "post_mortem"} {
		assert.Contains(t, schema.Properties, section)
	}
	assert.NotContains(t, schema.Properties, "Extensions")
}
