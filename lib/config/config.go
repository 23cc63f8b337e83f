// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "HARM_CONFIG"

// DefaultAPIPort is the api_port written to a fresh AppConfig.
const DefaultAPIPort = 10625

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for a desktop install.
	Development Environment = "development"
	// Production is for a headless host running harmd as a service.
	Production Environment = "production"
)

// Config is the master configuration for the console and daemon.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Paths   PathsConfig   `yaml:"paths"`
	Console ConsoleConfig `yaml:"console"`
	Daemon  DaemonConfig  `yaml:"daemon"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Daemon *DaemonConfig `yaml:"daemon,omitempty"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory for HARM state.
	Root string `yaml:"root"`

	// Socket is the daemon's control socket.
	// Default: ${HARM_ROOT}/harmd.sock
	Socket string `yaml:"socket"`

	// AppConfig is the JSON file holding the AppConfig record.
	// Default: ${HARM_ROOT}/config.json
	AppConfig string `yaml:"app_config"`

	// Database is the SQLite server registry.
	// Default: ${HARM_ROOT}/servers.db
	Database string `yaml:"database"`

	// LockFile is held by the running daemon so that only one daemon
	// owns the AppConfig.
	// Default: ${HARM_ROOT}/harmd.lock
	LockFile string `yaml:"lock_file"`
}

// ConsoleConfig configures the terminal console.
type ConsoleConfig struct {
	// RequestTimeout bounds each /servers request.
	// Default: 10s
	RequestTimeout string `yaml:"request_timeout"`

	// RetryAttempts is the number of tries per server list fetch.
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBackoff is the wait before the first retry; it doubles.
	// Default: 1s
	RetryBackoff string `yaml:"retry_backoff"`

	// PageSize is the number of servers requested per page.
	// Default: 50
	PageSize int `yaml:"page_size"`

	// LogLevel is the minimum level shown in the status bar.
	// Default: warn
	LogLevel string `yaml:"log_level"`
}

// DaemonConfig configures harmd.
type DaemonConfig struct {
	// DefaultAPIPort is the api_port of a freshly created AppConfig.
	// Default: 10625
	DefaultAPIPort int `yaml:"default_api_port"`

	// APIHost is the address the HTTP API binds.
	// Default: 127.0.0.1
	APIHost string `yaml:"api_host"`

	// ShutdownTimeout bounds the HTTP API's graceful shutdown.
	// Default: 5s
	ShutdownTimeout string `yaml:"shutdown_timeout"`

	// LogLevel is the daemon's minimum log level.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration. Paths contain
// ${HARM_ROOT}, which is expanded by Resolve and LoadFile.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      filepath.Join(homeDir, ".local", "share", "harm"),
			Socket:    "${HARM_ROOT}/harmd.sock",
			AppConfig: "${HARM_ROOT}/config.json",
			Database:  "${HARM_ROOT}/servers.db",
			LockFile:  "${HARM_ROOT}/harmd.lock",
		},
		Console: ConsoleConfig{
			RequestTimeout: "10s",
			RetryAttempts:  3,
			RetryBackoff:   "1s",
			PageSize:       50,
			LogLevel:       "warn",
		},
		Daemon: DaemonConfig{
			DefaultAPIPort:  DefaultAPIPort,
			APIHost:         "127.0.0.1",
			ShutdownTimeout: "5s",
			LogLevel:        "info",
		},
	}
}

// Resolve loads the config named by path, or by HARM_CONFIG when path
// is empty. With neither set it returns the expanded defaults.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path over the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if paths := overrides.Paths; paths != nil {
		overrideString(&c.Paths.Root, paths.Root)
		overrideString(&c.Paths.Socket, paths.Socket)
		overrideString(&c.Paths.AppConfig, paths.AppConfig)
		overrideString(&c.Paths.Database, paths.Database)
		overrideString(&c.Paths.LockFile, paths.LockFile)
	}
	if daemon := overrides.Daemon; daemon != nil {
		if daemon.DefaultAPIPort != 0 {
			c.Daemon.DefaultAPIPort = daemon.DefaultAPIPort
		}
		overrideString(&c.Daemon.APIHost, daemon.APIHost)
		overrideString(&c.Daemon.ShutdownTimeout, daemon.ShutdownTimeout)
		overrideString(&c.Daemon.LogLevel, daemon.LogLevel)
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HARM_ROOT": c.Paths.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["HARM_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.AppConfig = expandVars(c.Paths.AppConfig, vars)
	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.LockFile = expandVars(c.Paths.LockFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, checking vars before
// the process environment.
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

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	for name, value := range map[string]string{
		"paths.root":       c.Paths.Root,
		"paths.socket":     c.Paths.Socket,
		"paths.app_config": c.Paths.AppConfig,
		"paths.database":   c.Paths.Database,
		"paths.lock_file":  c.Paths.LockFile,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	for name, value := range map[string]string{
		"console.request_timeout": c.Console.RequestTimeout,
		"console.retry_backoff":   c.Console.RetryBackoff,
		"daemon.shutdown_timeout": c.Daemon.ShutdownTimeout,
	} {
		if _, err := parsePositiveDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Console.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("console.retry_attempts must be at least 1, got %d", c.Console.RetryAttempts))
	}
	if c.Console.PageSize < 1 {
		errs = append(errs, fmt.Errorf("console.page_size must be at least 1, got %d", c.Console.PageSize))
	}
	if _, err := ParseLevel(c.Console.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("console.log_level: %w", err))
	}

	if c.Daemon.DefaultAPIPort < 1 || c.Daemon.DefaultAPIPort > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("daemon.default_api_port %d out of range 1-65535", c.Daemon.DefaultAPIPort))
	}
	if net.ParseIP(c.Daemon.APIHost) == nil && c.Daemon.APIHost != "localhost" {
		errs = append(errs, fmt.Errorf("daemon.api_host must be an IP address or localhost, got %q", c.Daemon.APIHost))
	}
	if _, err := ParseLevel(c.Daemon.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("daemon.log_level: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestTimeoutDuration returns console.request_timeout. Call after
// Validate.
func (c *ConsoleConfig) RequestTimeoutDuration() time.Duration {
	duration, _ := parsePositiveDuration(c.RequestTimeout)
	return duration
}

// RetryBackoffDuration returns console.retry_backoff. Call after
// Validate.
func (c *ConsoleConfig) RetryBackoffDuration() time.Duration {
	duration, _ := parsePositiveDuration(c.RetryBackoff)
	return duration
}

// ShutdownTimeoutDuration returns daemon.shutdown_timeout. Call after
// Validate.
func (c *DaemonConfig) ShutdownTimeoutDuration() time.Duration {
	duration, _ := parsePositiveDuration(c.ShutdownTimeout)
	return duration
}

// EnsurePaths creates the root directory and the parents of every
// configured file.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Socket),
		filepath.Dir(c.Paths.AppConfig),
		filepath.Dir(c.Paths.Database),
		filepath.Dir(c.Paths.LockFile),
	}
	for _, directory := range directories {
		if directory == "" || directory == "." {
			continue
		}
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}

// ParseLevel parses a slog level name such as "info" or "warn".
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return level, nil
}

func parsePositiveDuration(value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return duration, nil
}
