package testsupport

import (
	"path/filepath"
	"testing"

	"caseflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Analytics.CacheTTLSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token the HTTP API requires.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithSLADefaults lets SLA lookups fall back to configured thresholds.
func WithSLADefaults() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.SLA.AllowDefault = true
	}
}

// WithOverloadThreshold sets the open-task count above which a user is overloaded.
func WithOverloadThreshold(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analytics.OverloadThreshold = n
	}
}

// WithCacheTTL enables the analytics cache for the given number of seconds.
func WithCacheTTL(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analytics.CacheTTLSeconds = seconds
	}
}

// WithConflictRetries sets how many times engine operations retry a lost race.
func WithConflictRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.MaxConflictRetries = n
	}
}
