package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Defaults applied by SetDefaults.
const (
	DefaultPreferredPort    = 5679
	DefaultLocalPort        = 5678
	DefaultBindAddress      = "0.0.0.0"
	DefaultDlvPath          = "dlv"
	DefaultSignal           = "SIGUSR1"
	DefaultSchedulerTimeout = "30s"
	DefaultLaunchPath       = ".vscode/launch.json"
	DefaultIdleInterval     = "1h"
)

// Config is the effective rdebug configuration.
type Config struct {
	Debug      DebugConfig      `yaml:"debug" toml:"debug"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" toml:"scheduler"`
	Launch     LaunchConfig     `yaml:"launch" toml:"launch"`
	PostMortem PostMortemConfig `yaml:"post_mortem" toml:"post_mortem"`

	// Extensions holds every top-level section rdebug does not know about,
	// e.g. "logging" or "tui". Decode them with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:"-" toml:"-"`
}

// DebugConfig controls the debugger listener and the SSH hint.
type DebugConfig struct {
	// PreferredPort is tried first; a random free port is used when it is taken.
	PreferredPort int `yaml:"preferred_port,omitempty" toml:"preferred_port,omitempty"`
	// LocalPort is the laptop-side port used in the printed ssh command.
	LocalPort int `yaml:"local_port,omitempty" toml:"local_port,omitempty"`
	// BindAddress is the interface the debug adapter listens on.
	BindAddress string `yaml:"bind_address,omitempty" toml:"bind_address,omitempty"`
	// DlvPath is the Delve executable.
	DlvPath string `yaml:"dlv_path,omitempty" toml:"dlv_path,omitempty"`
	// Signal triggers lite-mode activation.
	Signal string `yaml:"signal,omitempty" toml:"signal,omitempty"`
}

// SchedulerConfig names the Slurm executables and bounds their runtime.
type SchedulerConfig struct {
	Squeue   string `yaml:"squeue,omitempty" toml:"squeue,omitempty"`
	Srun     string `yaml:"srun,omitempty" toml:"srun,omitempty"`
	Scontrol string `yaml:"scontrol,omitempty" toml:"scontrol,omitempty"`
	Timeout  string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// LaunchConfig locates the editor launch configuration.
type LaunchConfig struct {
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// PostMortemConfig controls how long a crashed process is kept alive.
type PostMortemConfig struct {
	// IdleInterval is the sleep granularity of the idle loop.
	IdleInterval string `yaml:"idle_interval,omitempty" toml:"idle_interval,omitempty"`
	// MaxIdle stops idling after this long. Empty or "0" waits forever.
	MaxIdle string `yaml:"max_idle,omitempty" toml:"max_idle,omitempty"`
}

// knownSections are decoded into typed fields instead of Extensions.
var knownSections = map[string]bool{
	"debug":       true,
	"scheduler":   true,
	"launch":      true,
	"post_mortem": true,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Debug.PreferredPort == 0 {
		c.Debug.PreferredPort = DefaultPreferredPort
	}
	if c.Debug.LocalPort == 0 {
		c.Debug.LocalPort = DefaultLocalPort
	}
	if c.Debug.BindAddress == "" {
		c.Debug.BindAddress = DefaultBindAddress
	}
	if c.Debug.DlvPath == "" {
		c.Debug.DlvPath = DefaultDlvPath
	}
	if c.Debug.Signal == "" {
		c.Debug.Signal = DefaultSignal
	}

	if c.Scheduler.Squeue == "" {
		c.Scheduler.Squeue = "squeue"
	}
	if c.Scheduler.Srun == "" {
		c.Scheduler.Srun = "srun"
	}
	if c.Scheduler.Scontrol == "" {
		c.Scheduler.Scontrol = "scontrol"
	}
	if c.Scheduler.Timeout == "" {
		c.Scheduler.Timeout = DefaultSchedulerTimeout
	}

	if c.Launch.Path == "" {
		c.Launch.Path = DefaultLaunchPath
	}

	if c.PostMortem.IdleInterval == "" {
		c.PostMortem.IdleInterval = DefaultIdleInterval
	}
}

// SchedulerTimeout parses Scheduler.Timeout.
func (c *Config) SchedulerTimeout() time.Duration {
	return parseDurationOr(c.Scheduler.Timeout, 30*time.Second)
}

// IdleInterval parses PostMortem.IdleInterval.
func (c *Config) IdleInterval() time.Duration {
	return parseDurationOr(c.PostMortem.IdleInterval, time.Hour)
}

// MaxIdle parses PostMortem.MaxIdle; zero means unbounded.
func (c *Config) MaxIdle() time.Duration {
	return parseDurationOr(c.PostMortem.MaxIdle, 0)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// UnmarshalExtension decodes a specific extension's configuration into the
// provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	// Use mapstructure to decode the generic map[string]interface{}
	// into the strongly-typed target struct, keyed by `yaml` tags.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
