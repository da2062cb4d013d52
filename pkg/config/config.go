// Package config provides unified configuration for glmkit clients.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ZAI_* and GLMKIT_*)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for a glmkit client.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	Recorder      RecorderConfig      `yaml:"recorder"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig holds connection and model settings for the provider.
type ProviderConfig struct {
	Host       string        `yaml:"host"`         // default: "https://api.z.ai"
	APIKey     string        `yaml:"api_key"`      // required
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Auth       string        `yaml:"auth"`         // "header" or "jwt", default: "header"
	Timeout    time.Duration `yaml:"timeout"`      // default: 600s
	Model      string        `yaml:"model"`        // default: "glm-4.5"
	MaxRetries int           `yaml:"max_retries"`  // default: 3
}

// RecorderConfig holds request attempt recording settings.
type RecorderConfig struct {
	Type     string         `yaml:"type"` // "none", "slog", or "postgres", default: "slog"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific recorder settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Host:       "https://api.z.ai",
			Auth:       "header",
			Timeout:    600 * time.Second,
			Model:      "glm-4.5",
			MaxRetries: 3,
		},
		Recorder: RecorderConfig{
			Type: "slog",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
