package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeSLA()
	c.normalizeAnalytics()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv(apiTokenEnv); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
}

func (c *Config) normalizeSLA() {
	normalized := make(map[string]Threshold, len(c.SLA.Defaults))
	for key, value := range c.SLA.Defaults {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}
	// A partial [sla.defaults] table keeps the built-in values for unlisted priorities.
	for key, value := range defaultSLAThresholds() {
		if _, ok := normalized[key]; !ok {
			normalized[key] = value
		}
	}
	c.SLA.Defaults = normalized
}

func (c *Config) normalizeAnalytics() {
	if c.Analytics.VelocityWindowDays == 0 {
		c.Analytics.VelocityWindowDays = defaultVelocityWindowDays
	}
	if c.Analytics.OverloadThreshold == 0 {
		c.Analytics.OverloadThreshold = defaultOverloadThreshold
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(notificationTopicOverrideEnv); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	types := c.Notifications.Types[:0]
	for _, t := range c.Notifications.Types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	c.Notifications.Types = types
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
