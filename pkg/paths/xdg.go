// Package paths provides XDG-compliant path resolution for rdebug.
//
// Resolution order:
// 1. RDEBUG_HOME (portable root) → $RDEBUG_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/rdebug
// 3. Platform defaults → ~/.config/rdebug, ~/.local/state/rdebug
package paths

import (
	"os"
	"path/filepath"
)

const appName = "rdebug"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("RDEBUG_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("RDEBUG_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the rdebug configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	if os.Getenv("RDEBUG_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// StateDir returns the rdebug state directory. Log files live here.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	if os.Getenv("RDEBUG_HOME") != "" {
		return base
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory for file log sinks.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// GlobalConfigCandidates lists the global config file names in lookup order.
func GlobalConfigCandidates() []string {
	dir := ConfigDir()
	if dir == "" {
		return nil
	}
	return []string{
		filepath.Join(dir, "config.yml"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.toml"),
	}
}
