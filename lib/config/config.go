// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Quarry services.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Server configures the inbound HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Remote configures the outbound analytical service client.
	Remote RemoteConfig `yaml:"remote"`

	// Tenants configures the tenant store and catalog seeding.
	Tenants TenantsConfig `yaml:"tenants"`

	// Audit configures the query audit log.
	Audit AuditConfig `yaml:"audit"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Server *ServerConfig `yaml:"server,omitempty"`
	Remote *RemoteConfig `yaml:"remote,omitempty"`
	Audit  *AuditConfig  `yaml:"audit,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Quarry data.
	Root string `yaml:"root"`

	// State is where runtime state (tenant database, audit log) is stored.
	State string `yaml:"state"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	// Address is the TCP listen address (e.g., ":8080").
	Address string `yaml:"address"`

	// ShutdownTimeout is the maximum time to wait for in-flight
	// requests to drain during graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RemoteConfig configures the outbound analytical service client.
type RemoteConfig struct {
	// CallTimeout bounds every remote call (handshake and query alike).
	// On expiry the call is reported as a transport failure.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// StreamThreshold is the row count above which query results are
	// delivered as an NDJSON stream instead of one buffered document.
	StreamThreshold int `yaml:"stream_threshold"`
}

// TenantsConfig configures the tenant store.
type TenantsConfig struct {
	// DatabasePath is the SQLite database file holding tenant records.
	DatabasePath string `yaml:"database_path"`

	// CatalogPath is an optional JSONC catalog file seeded into the
	// store at startup. Empty disables seeding.
	CatalogPath string `yaml:"catalog_path"`
}

// AuditConfig configures the query audit log.
type AuditConfig struct {
	// Path is the audit log file. Empty disables auditing.
	Path string `yaml:"path"`
}

// Default returns the default configuration. These defaults ensure all
// fields have sensible zero-values before the config file is loaded —
// the config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "quarry")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			State: filepath.Join(defaultRoot, "state"),
		},
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			CallTimeout:     30 * time.Second,
			StreamThreshold: 1000,
		},
		Tenants: TenantsConfig{
			DatabasePath: filepath.Join(defaultRoot, "state", "tenants.db"),
		},
		Audit: AuditConfig{
			Path: filepath.Join(defaultRoot, "state", "query-audit.log"),
		},
	}
}

// Load loads configuration from the QUARRY_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks — if QUARRY_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("QUARRY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("QUARRY_CONFIG environment variable not set; " +
			"set it to the path of your quarry.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do
// not override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Server != nil {
		if overrides.Server.Address != "" {
			c.Server.Address = overrides.Server.Address
		}
		if overrides.Server.ShutdownTimeout != 0 {
			c.Server.ShutdownTimeout = overrides.Server.ShutdownTimeout
		}
	}

	if overrides.Remote != nil {
		if overrides.Remote.CallTimeout != 0 {
			c.Remote.CallTimeout = overrides.Remote.CallTimeout
		}
		if overrides.Remote.StreamThreshold != 0 {
			c.Remote.StreamThreshold = overrides.Remote.StreamThreshold
		}
	}

	if overrides.Audit != nil {
		c.Audit.Path = overrides.Audit.Path
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"QUARRY_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["QUARRY_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Tenants.DatabasePath = expandVars(c.Tenants.DatabasePath, vars)
	c.Tenants.CatalogPath = expandVars(c.Tenants.CatalogPath, vars)
	c.Audit.Path = expandVars(c.Audit.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Server.Address == "" {
		errs = append(errs, fmt.Errorf("server.address is required"))
	}
	if c.Remote.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("remote.call_timeout must be positive"))
	}
	if c.Remote.StreamThreshold <= 0 {
		errs = append(errs, fmt.Errorf("remote.stream_threshold must be positive"))
	}
	if c.Tenants.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("tenants.database_path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
