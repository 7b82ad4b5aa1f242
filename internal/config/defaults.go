package config

const (
	defaultConfigPath            = "~/.config/caseflow/config.toml"
	defaultDataDir               = "~/.local/share/caseflow"
	defaultLogDir                = "~/.local/share/caseflow/logs"
	defaultBind                  = "127.0.0.1:7610"
	defaultRequestTimeoutSeconds = 15
	defaultMaxConflictRetries    = 3
	defaultCacheTTLSeconds       = 30
	defaultOverloadThreshold     = 10
	defaultVelocityWindowDays    = 14
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxRequestTimeoutSeconds     = 300
	maxConflictRetriesUpperBound = 10
	maxVelocityWindowDays        = 365
	apiTokenEnv                  = "CASEFLOW_API_TOKEN"
	notificationTopicOverrideEnv = "CASEFLOW_NTFY_TOPIC"
)

// Priorities recognised by the fallback SLA table.
var knownPriorities = []string{"low", "medium", "high", "critical"}

func defaultSLAThresholds() map[string]Threshold {
	return map[string]Threshold{
		"critical": {WarningHours: 4, BreachHours: 8},
		"high":     {WarningHours: 24, BreachHours: 48},
		"medium":   {WarningHours: 72, BreachHours: 120},
		"low":      {WarningHours: 168, BreachHours: 240},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:                  defaultBind,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			MaxConflictRetries:    defaultMaxConflictRetries,
		},
		SLA: SLA{
			AllowDefault: false,
			Defaults:     defaultSLAThresholds(),
		},
		Analytics: Analytics{
			CacheTTLSeconds:    defaultCacheTTLSeconds,
			OverloadThreshold:  defaultOverloadThreshold,
			VelocityWindowDays: defaultVelocityWindowDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
