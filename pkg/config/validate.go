package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// provider.api_key is required.
	if c.Provider.APIKey == "" {
		errs = append(errs, fmt.Errorf("provider.api_key is required (set ZAI_API_KEY or provider.api_key)"))
	}

	// provider.host is required.
	if c.Provider.Host == "" {
		errs = append(errs, fmt.Errorf("provider.host is required"))
	}

	// provider.auth must be a known value.
	switch c.Provider.Auth {
	case "header", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("provider.auth must be \"header\" or \"jwt\", got %q", c.Provider.Auth))
	}

	// provider.timeout must be positive.
	if c.Provider.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout must be > 0, got %v", c.Provider.Timeout))
	}

	// provider.max_retries must be at least 1.
	if c.Provider.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("provider.max_retries must be >= 1, got %d", c.Provider.MaxRetries))
	}

	// recorder.type must be a known value.
	switch c.Recorder.Type {
	case "none", "slog", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("recorder.type must be \"none\", \"slog\", or \"postgres\", got %q", c.Recorder.Type))
	}

	// If recorder.type is "postgres", DSN or DSNFile must be set.
	if c.Recorder.Type == "postgres" {
		if c.Recorder.Postgres.DSN == "" && c.Recorder.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("recorder.postgres.dsn or recorder.postgres.dsn_file is required when recorder.type is \"postgres\""))
		}
	}

	return errors.Join(errs...)
}
