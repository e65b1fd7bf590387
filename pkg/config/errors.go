package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoSegmentDirs is returned when no segment directories are specified.
	ErrNoSegmentDirs = errors.New("no segment directories specified")

	// ErrInvalidTestType is returned when the fallback test type is not recognized.
	ErrInvalidTestType = errors.New("invalid fallback test type: must be control or mcp")

	// ErrInvalidWorkerPoolSize is returned when worker pool size is <= 0.
	ErrInvalidWorkerPoolSize = errors.New("invalid worker pool size: must be > 0")

	// ErrInvalidPricing is returned when a pricing rate is negative.
	ErrInvalidPricing = errors.New("invalid pricing: rates must be >= 0")

	// ErrInvalidDebounceInterval is returned when debounce interval is <= 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be > 0")

	// ErrNoDBPath is returned when no database path is configured.
	ErrNoDBPath = errors.New("no database path specified")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
