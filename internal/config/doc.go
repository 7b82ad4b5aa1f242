// Package config loads caseflow configuration from TOML.
//
// Load applies the repository defaults, decodes the file found at the explicit
// path (or ~/.config/caseflow/config.toml, or ./caseflow.toml), expands paths,
// fills environment overrides, and validates the result. Every other package
// receives a *Config that has already passed Validate.
package config
