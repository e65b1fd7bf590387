// Package config provides configuration management for session-metrics.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Segment dirs: %v\n", cfg.SegmentDirs)
package config

import (
	"time"

	"github.com/0xmhha/session-metrics/pkg/logger"
)

// Test types accepted as the extraction fallback.
const (
	TestTypeControl = "control"
	TestTypeMCP     = "mcp"
)

// Config represents the complete application configuration.
//
// Invariants:
// - SegmentDirs must have at least one directory
// - Extraction.WorkerPoolSize must be > 0
// - Pricing rates must be >= 0
// - Watch.DebounceInterval must be > 0.
type Config struct {
	// Directories holding recorded segment files
	SegmentDirs []string `yaml:"segment_dirs"`

	// Extraction settings
	Extraction ExtractionConfig `yaml:"extraction"`

	// Pricing used when a session reports no cost
	Pricing PricingConfig `yaml:"pricing"`

	// Watch settings
	Watch WatchConfig `yaml:"watch"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ExtractionConfig contains extraction settings.
type ExtractionConfig struct {
	// Mode assigned to sessions that neither use MCP nor declare a test type
	FallbackTestType string `yaml:"fallback_test_type"`

	// Number of segments extracted concurrently
	WorkerPoolSize int `yaml:"worker_pool_size"`
}

// PricingConfig contains per-1K-token rates in dollars.
type PricingConfig struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// WatchConfig contains segment watcher settings.
type WatchConfig struct {
	// Quiet period before a changed segment is re-extracted
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to BoltDB database file
	DBPath string `yaml:"db_path"`

	// Where extract --export writes summary.json by default
	SummaryPath string `yaml:"summary_path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address
	Addr string `yaml:"addr"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	DefaultFormat string `yaml:"default_format"`

	// Show per-cohort averages in reports
	ShowCohorts bool `yaml:"show_cohorts"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.SegmentDirs) == 0 {
		return ErrNoSegmentDirs
	}

	switch c.Extraction.FallbackTestType {
	case TestTypeControl, TestTypeMCP:
	default:
		return ErrInvalidTestType
	}
	if c.Extraction.WorkerPoolSize <= 0 {
		return ErrInvalidWorkerPoolSize
	}

	if c.Pricing.InputPer1K < 0 || c.Pricing.OutputPer1K < 0 {
		return ErrInvalidPricing
	}

	if c.Watch.DebounceInterval <= 0 {
		return ErrInvalidDebounceInterval
	}

	if c.Storage.DBPath == "" {
		return ErrNoDBPath
	}

	switch c.Display.DefaultFormat {
	case "table", "json", "simple":
	default:
		return ErrInvalidDisplayFormat
	}

	if !logger.ValidLevel(c.Logging.Level) {
		return ErrInvalidLogLevel
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		SegmentDirs: defaultSegmentDirs(),
		Extraction: ExtractionConfig{
			FallbackTestType: TestTypeControl,
			WorkerPoolSize:   5,
		},
		Pricing: PricingConfig{
			InputPer1K:  0.008,
			OutputPer1K: 0.024,
		},
		Watch: WatchConfig{
			DebounceInterval: 250 * time.Millisecond,
		},
		Storage: StorageConfig{
			DBPath:      defaultDBPath(),
			SummaryPath: "summary.json",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Display: DisplayConfig{
			DefaultFormat: "table",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
