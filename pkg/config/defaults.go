package config

import (
	"os"
	"path/filepath"
)

// appDir is the per-user directory holding the database and config file.
const appDir = "session-metrics"

// defaultSegmentDirs returns the default segment directory.
//
// Returns: ./segments.
func defaultSegmentDirs() []string {
	return []string{"segments"}
}

// defaultDBPath returns the default database file path.
//
// Returns: ~/.config/session-metrics/metrics.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./metrics.db"
	}

	return filepath.Join(homeDir, ".config", appDir, "metrics.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/session-metrics/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", appDir, "config.yaml")
}
