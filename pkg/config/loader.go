package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by the loader.
const (
	EnvSegmentDirs = "SESSION_METRICS_SEGMENT_DIRS"
	EnvDBPath      = "SESSION_METRICS_DB"
	EnvLogLevel    = "SESSION_METRICS_LOG_LEVEL"
	EnvAddr        = "SESSION_METRICS_ADDR"
	EnvConfigPath  = "SESSION_METRICS_CONFIG"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile decodes a config file over the defaults without
	// applying environment overrides or validating.
	LoadFromFile(path string) (*Config, error)

	// Path returns the config file Load reads, or "" if none exists.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, SESSION_METRICS_CONFIG is consulted, then:
// 1. ./config.yaml (current directory)
// 2. ~/.config/session-metrics/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	explicit := l.explicitPath()
	configPath := explicit
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		switch {
		case err == nil:
			cfg = fileCfg
		case explicit != "":
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// Keys absent from the file keep their default values.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if p := l.explicitPath(); p != "" {
		return p
	}
	return findConfigFile()
}

// explicitPath returns the path given to NewLoader or via environment.
func (l *loader) explicitPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return os.Getenv(EnvConfigPath)
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	for _, path := range []string{"./config.yaml", DefaultConfigPath()} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - SESSION_METRICS_SEGMENT_DIRS: Comma-separated list of segment directories
//   - SESSION_METRICS_DB: Path to database file
//   - SESSION_METRICS_LOG_LEVEL: Log level
//   - SESSION_METRICS_ADDR: Server listen address
func applyEnvVars(cfg *Config) {
	if envDirs := os.Getenv(EnvSegmentDirs); envDirs != "" {
		var dirs []string
		for _, d := range strings.Split(envDirs, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		cfg.SegmentDirs = dirs
	}

	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}

	if addr := os.Getenv(EnvAddr); addr != "" {
		cfg.Server.Addr = addr
	}
}

// Load is a convenience function that creates a loader and loads configuration.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
