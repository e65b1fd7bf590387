package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.SegmentDirs)
	assert.Equal(t, TestTypeControl, cfg.Extraction.FallbackTestType)
	assert.Equal(t, 5, cfg.Extraction.WorkerPoolSize)
	assert.Equal(t, 0.008, cfg.Pricing.InputPer1K)
	assert.Equal(t, 0.024, cfg.Pricing.OutputPer1K)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.DebounceInterval)
	assert.NotEmpty(t, cfg.Storage.DBPath)
	assert.Equal(t, "summary.json", cfg.Storage.SummaryPath)
	assert.Equal(t, "table", cfg.Display.DefaultFormat)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid default config", func(*Config) {}, nil},
		{"no segment directories", func(c *Config) { c.SegmentDirs = nil }, ErrNoSegmentDirs},
		{"unknown test type", func(c *Config) { c.Extraction.FallbackTestType = "baseline" }, ErrInvalidTestType},
		{"mcp fallback", func(c *Config) { c.Extraction.FallbackTestType = TestTypeMCP }, nil},
		{"zero workers", func(c *Config) { c.Extraction.WorkerPoolSize = 0 }, ErrInvalidWorkerPoolSize},
		{"negative input price", func(c *Config) { c.Pricing.InputPer1K = -1 }, ErrInvalidPricing},
		{"free pricing", func(c *Config) { c.Pricing = PricingConfig{} }, nil},
		{"zero debounce", func(c *Config) { c.Watch.DebounceInterval = 0 }, ErrInvalidDebounceInterval},
		{"no db path", func(c *Config) { c.Storage.DBPath = "" }, ErrNoDBPath},
		{"unknown display format", func(c *Config) { c.Display.DefaultFormat = "live" }, ErrInvalidDisplayFormat},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr error
	}{
		{
			name: "partial file keeps defaults",
			content: `
segment_dirs:
  - /data/segments
pricing:
  input_per_1k: 0.003
watch:
  debounce_interval: 1s
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"/data/segments"}, cfg.SegmentDirs)
				assert.Equal(t, 0.003, cfg.Pricing.InputPer1K)
				assert.Equal(t, 0.024, cfg.Pricing.OutputPer1K)
				assert.Equal(t, time.Second, cfg.Watch.DebounceInterval)
				assert.Equal(t, 5, cfg.Extraction.WorkerPoolSize)
			},
		},
		{
			name: "full sections",
			content: `
extraction:
  fallback_test_type: mcp
  worker_pool_size: 12
storage:
  db_path: /tmp/m.db
  summary_path: /srv/www/metrics/summary.json
server:
  addr: ":9090"
display:
  default_format: json
  show_cohorts: true
logging:
  level: debug
  format: json
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, TestTypeMCP, cfg.Extraction.FallbackTestType)
				assert.Equal(t, 12, cfg.Extraction.WorkerPoolSize)
				assert.Equal(t, "/tmp/m.db", cfg.Storage.DBPath)
				assert.Equal(t, "/srv/www/metrics/summary.json", cfg.Storage.SummaryPath)
				assert.Equal(t, ":9090", cfg.Server.Addr)
				assert.Equal(t, "json", cfg.Display.DefaultFormat)
				assert.True(t, cfg.Display.ShowCohorts)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name:    "empty file",
			content: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name:    "invalid yaml",
			content: "segment_dirs: [unterminated",
			wantErr: ErrInvalidYAML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			cfg, err := NewLoader(path).LoadFromFile(path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := NewLoader("").LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction:\n  worker_pool_size: -1\n"), 0600))

	_, err := NewLoader(path).Load()
	assert.ErrorIs(t, err, ErrInvalidWorkerPoolSize)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0600))
	t.Setenv(EnvConfigPath, path)

	l := NewLoader("")
	assert.Equal(t, path, l.Path())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.SegmentDirs = []string{"/a", "/b"}
	cfg.Watch.DebounceInterval = 2 * time.Second
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewLoader(path).LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSave_Invalid(t *testing.T) {
	cfg := Default()
	cfg.SegmentDirs = nil

	assert.ErrorIs(t, Save(cfg, filepath.Join(t.TempDir(), "c.yaml")), ErrNoSegmentDirs)
}

func TestEnvVarOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("segment_dirs: [/from/file]\n"), 0600))

	t.Setenv(EnvSegmentDirs, " /env/one , ,/env/two")
	t.Setenv(EnvDBPath, "/env/metrics.db")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvAddr, "0.0.0.0:9999")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"/env/one", "/env/two"}, cfg.SegmentDirs)
	assert.Equal(t, "/env/metrics.db", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)
}
