package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, GLMKIT_CONFIG env, ./glmkit.yaml, /etc/glmkit/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. GLMKIT_CONFIG environment variable
// 3. ./glmkit.yaml in the current directory
// 4. /etc/glmkit/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check GLMKIT_CONFIG env var.
	if envPath := os.Getenv("GLMKIT_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"glmkit.yaml",
		"/etc/glmkit/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
// The ZAI_* names match what existing deployments already export, so a
// client works with no config file at all when ZAI_API_KEY is set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZAI_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("ZAI_HOST"); v != "" {
		cfg.Provider.Host = v
	}
	if v := os.Getenv("ZAI_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Provider.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("GLMKIT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("GLMKIT_AUTH"); v != "" {
		cfg.Provider.Auth = v
	}
	if v := os.Getenv("GLMKIT_RECORDER"); v != "" {
		cfg.Recorder.Type = v
	}
	if v := os.Getenv("GLMKIT_POSTGRES_DSN"); v != "" {
		cfg.Recorder.Postgres.DSN = v
	}
}

// resolveFileReferences resolves _file suffix fields by reading the
// referenced files. The direct value takes priority when both are set.
func resolveFileReferences(cfg *Config) error {
	if cfg.Provider.APIKey == "" && cfg.Provider.APIKeyFile != "" {
		v, err := readSecretFile(cfg.Provider.APIKeyFile)
		if err != nil {
			return fmt.Errorf("provider.api_key_file: %w", err)
		}
		cfg.Provider.APIKey = v
	}
	if cfg.Recorder.Postgres.DSN == "" && cfg.Recorder.Postgres.DSNFile != "" {
		v, err := readSecretFile(cfg.Recorder.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("recorder.postgres.dsn_file: %w", err)
		}
		cfg.Recorder.Postgres.DSN = v
	}
	return nil
}

// readSecretFile reads a file and trims trailing whitespace, which is
// how secrets mounted from volumes usually arrive.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
