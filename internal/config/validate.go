package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCoordination(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateCoordination() error {
	if err := ensurePositiveMap(map[string]int{
		"coordination.claim_stale_seconds":    c.Coordination.ClaimStaleSeconds,
		"coordination.heartbeat_ttl_seconds":  c.Coordination.HeartbeatTTLSeconds,
		"coordination.sweep_interval_seconds": c.Coordination.SweepIntervalSeconds,
		"coordination.history_limit":          c.Coordination.HistoryLimit,
	}); err != nil {
		return err
	}
	if c.Coordination.StallThresholdMs <= 0 {
		return errors.New("coordination.stall_threshold_ms must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
