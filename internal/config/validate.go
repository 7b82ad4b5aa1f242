package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSLA(); err != nil {
		return err
	}
	if err := c.validateAnalytics(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q: %w", c.Server.Bind, err)
	}
	if c.Server.RequestTimeoutSeconds < 1 || c.Server.RequestTimeoutSeconds > maxRequestTimeoutSeconds {
		return fmt.Errorf("server.request_timeout_seconds must be between 1 and %d", maxRequestTimeoutSeconds)
	}
	if c.Server.MaxConflictRetries < 0 || c.Server.MaxConflictRetries > maxConflictRetriesUpperBound {
		return fmt.Errorf("server.max_conflict_retries must be between 0 and %d", maxConflictRetriesUpperBound)
	}
	return nil
}

func (c *Config) validateSLA() error {
	for priority, threshold := range c.SLA.Defaults {
		if !slices.Contains(knownPriorities, priority) {
			return fmt.Errorf("sla.defaults.%s: unknown priority", priority)
		}
		if threshold.WarningHours < 0 {
			return fmt.Errorf("sla.defaults.%s.warning_hours must be >= 0", priority)
		}
		if threshold.WarningHours >= threshold.BreachHours {
			return fmt.Errorf("sla.defaults.%s: warning_hours must be less than breach_hours", priority)
		}
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	if c.Analytics.CacheTTLSeconds < 0 {
		return errors.New("analytics.cache_ttl_seconds must be >= 0")
	}
	if c.Analytics.OverloadThreshold < 1 {
		return errors.New("analytics.overload_threshold must be >= 1")
	}
	if c.Analytics.VelocityWindowDays < 1 || c.Analytics.VelocityWindowDays > maxVelocityWindowDays {
		return fmt.Errorf("analytics.velocity_window_days must be between 1 and %d", maxVelocityWindowDays)
	}
	return nil
}

var notificationTypes = []string{
	"task_assigned",
	"sla_warning",
	"sla_breach",
	"stage_completed",
	"approval_required",
	"approval_approved",
	"approval_rejected",
}

func (c *Config) validateNotifications() error {
	for _, t := range c.Notifications.Types {
		if !slices.Contains(notificationTypes, t) {
			return fmt.Errorf("notifications.types: unknown type %q", t)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
