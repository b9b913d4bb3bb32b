package config

import (
	"strconv"
)

// mergeConfigs merges override configuration into base. Non-zero override
// fields win; extensions are merged key by key.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	// Merge debug
	if override.Debug.PreferredPort != 0 {
		result.Debug.PreferredPort = override.Debug.PreferredPort
	}
	if override.Debug.LocalPort != 0 {
		result.Debug.LocalPort = override.Debug.LocalPort
	}
	if override.Debug.BindAddress != "" {
		result.Debug.BindAddress = override.Debug.BindAddress
	}
	if override.Debug.DlvPath != "" {
		result.Debug.DlvPath = override.Debug.DlvPath
	}
	if override.Debug.Signal != "" {
		result.Debug.Signal = override.Debug.Signal
	}

	// Merge scheduler
	if override.Scheduler.Squeue != "" {
		result.Scheduler.Squeue = override.Scheduler.Squeue
	}
	if override.Scheduler.Srun != "" {
		result.Scheduler.Srun = override.Scheduler.Srun
	}
	if override.Scheduler.Scontrol != "" {
		result.Scheduler.Scontrol = override.Scheduler.Scontrol
	}
	if override.Scheduler.Timeout != "" {
		result.Scheduler.Timeout = override.Scheduler.Timeout
	}

	// Merge launch
	if override.Launch.Path != "" {
		result.Launch.Path = override.Launch.Path
	}

	// Merge post-mortem
	if override.PostMortem.IdleInterval != "" {
		result.PostMortem.IdleInterval = override.PostMortem.IdleInterval
	}
	if override.PostMortem.MaxIdle != "" {
		result.PostMortem.MaxIdle = override.PostMortem.MaxIdle
	}

	// Merge extensions
	if len(override.Extensions) > 0 {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			merged[k] = v
		}
		for k, v := range override.Extensions {
			merged[k] = v
		}
		result.Extensions = merged
	}

	return &result
}

// applyEnvOverrides applies RDEBUG_* variables on top of file configuration.
// Unparsable numbers are ignored here and caught by Validate when they
// produce an out-of-range value.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("RDEBUG_PREFERRED_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Debug.PreferredPort = port
		}
	}
	if v := getenv("RDEBUG_LOCAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Debug.LocalPort = port
		}
	}
	if v := getenv("RDEBUG_BIND_ADDRESS"); v != "" {
		cfg.Debug.BindAddress = v
	}
	if v := getenv("RDEBUG_DLV"); v != "" {
		cfg.Debug.DlvPath = v
	}
	if v := getenv("RDEBUG_SIGNAL"); v != "" {
		cfg.Debug.Signal = v
	}
	if v := getenv("RDEBUG_SCHEDULER_TIMEOUT"); v != "" {
		cfg.Scheduler.Timeout = v
	}
	if v := getenv("RDEBUG_LAUNCH_PATH"); v != "" {
		cfg.Launch.Path = v
	}
	if v := getenv("RDEBUG_MAX_IDLE"); v != "" {
		cfg.PostMortem.MaxIdle = v
	}
}
