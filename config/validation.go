package config

import (
	"fmt"
	"net"
	"time"

	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/pkg/process"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validatePort("debug.preferred_port", c.Debug.PreferredPort); err != nil {
		return err
	}
	if err := validatePort("debug.local_port", c.Debug.LocalPort); err != nil {
		return err
	}

	if c.Debug.BindAddress != "" && net.ParseIP(c.Debug.BindAddress) == nil {
		return errors.ConfigInvalid(fmt.Sprintf("debug.bind_address %q is not an IP address", c.Debug.BindAddress)).
			WithDetail("field", "debug.bind_address")
	}

	if c.Debug.Signal != "" {
		if _, err := process.ParseSignal(c.Debug.Signal); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid debug.signal").
				WithDetail("field", "debug.signal")
		}
	}

	durations := map[string]string{
		"scheduler.timeout":         c.Scheduler.Timeout,
		"post_mortem.idle_interval": c.PostMortem.IdleInterval,
		"post_mortem.max_idle":      c.PostMortem.MaxIdle,
	}
	for field, value := range durations {
		if err := validateDuration(field, value); err != nil {
			return err
		}
	}

	return nil
}

// validatePort accepts 0 (unset, defaults apply later) or 1-65535.
func validatePort(field string, port int) error {
	if port < 0 || port > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be between 1 and 65535, got %d", field, port)).
			WithDetail("field", field)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("%s is not a duration", field)).
			WithDetail("field", field)
	}
	if d < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("%s cannot be negative", field)).
			WithDetail("field", field)
	}
	return nil
}
