// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

// Package config loads and validates the host configuration for the
// extension subsystem.
package config

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"

	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// Config is the top-level Praxis host configuration.
type Config struct {
	Host       HostConfig       `mapstructure:"host"`
	Extensions ExtensionsConfig `mapstructure:"extensions"`
	Licensing  LicensingConfig  `mapstructure:"licensing"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// HostConfig identifies this host installation.
type HostConfig struct {
	Version string `mapstructure:"version"`
	DataDir string `mapstructure:"data_dir"`
}

// ExtensionsConfig controls where extensions live and where registry state
// is persisted.
type ExtensionsConfig struct {
	Dir       string `mapstructure:"dir"`
	StateFile string `mapstructure:"state_file"`
}

// LicensingConfig points at the license service and the offline cache.
type LicensingConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	CacheFile      string `mapstructure:"cache_file"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AuditConfig selects the audit trail backend.
type AuditConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults installs the default configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host.version", "3.2.0")
	v.SetDefault("host.data_dir", defaultDataDir())
	v.SetDefault("extensions.dir", "")
	v.SetDefault("extensions.state_file", "")
	v.SetDefault("licensing.endpoint", "https://licensing.praxis.example")
	v.SetDefault("licensing.cache_file", "")
	v.SetDefault("licensing.timeout_seconds", 10)
	v.SetDefault("audit.backend", "sqlite")
	v.SetDefault("audit.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds PRAXIS_-prefixed environment variables, with dots mapped
// to underscores (PRAXIS_AUDIT_BACKEND overrides audit.backend).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("PRAXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates a fully initialised viper instance,
// then fills the data-dir-relative path defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	cfg.applyDerivedDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix PRAXIS_).
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, praxiserr.Errorf(praxiserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// applyDerivedDefaults fills the paths that default relative to data_dir.
func (c *Config) applyDerivedDefaults() {
	if c.Host.DataDir == "" {
		return
	}
	if c.Extensions.Dir == "" {
		c.Extensions.Dir = filepath.Join(c.Host.DataDir, "extensions")
	}
	if c.Extensions.StateFile == "" {
		c.Extensions.StateFile = filepath.Join(c.Host.DataDir, "extensions.json")
	}
	if c.Licensing.CacheFile == "" {
		c.Licensing.CacheFile = filepath.Join(c.Host.DataDir, "licenses.json")
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Host.DataDir, "audit.db")
	}
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateHost()...)
	errs = append(errs, c.validateLicensing()...)
	errs = append(errs, c.validateAudit()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateHost() []error {
	var errs []error

	if c.Host.Version == "" {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue, "config: host.version must not be empty"))
	} else if _, err := semver.NewVersion(c.Host.Version); err != nil {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: host.version must be a semantic version, got %q", c.Host.Version))
	}

	if c.Host.DataDir == "" {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue, "config: host.data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validateLicensing() []error {
	var errs []error

	if c.Licensing.Endpoint == "" {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue, "config: licensing.endpoint must not be empty"))
	} else {
		u, err := url.Parse(c.Licensing.Endpoint)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
				"config: licensing.endpoint must be an https URL, got %q", c.Licensing.Endpoint))
		}
	}

	if c.Licensing.TimeoutSeconds <= 0 {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: licensing.timeout_seconds must be greater than 0, got %d", c.Licensing.TimeoutSeconds))
	}

	return errs
}

func (c *Config) validateAudit() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Audit.Backend] {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: audit.backend must be one of [sqlite, memory], got %q", c.Audit.Backend))
	}
	if c.Audit.Backend == "sqlite" && c.Audit.Path == "" {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: audit.path must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, praxiserr.Errorf(praxiserr.CodeConfigValidateInvalidValue,
			"config: logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
