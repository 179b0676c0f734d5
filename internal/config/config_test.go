package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Engine.BatchWorkers)
	assert.False(t, cfg.Database.Enabled)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad_port", func(c *Config) { c.Server.Port = 0 }},
		{"port_too_large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero_workers", func(c *Config) { c.Engine.BatchWorkers = 0 }},
		{"rate_limit_without_rps", func(c *Config) { c.Security.RateLimit.RPS = 0 }},
		{"db_enabled_without_url", func(c *Config) { c.Database.Enabled = true }},
		{"no_readings_dir", func(c *Config) { c.Paths.ReadingsDir = "" }},
		{"negative_read_timeout", func(c *Config) { c.Server.ReadTimeout = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "meterfill.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9100
engine:
  batch_workers: 3
`), 0644))

	t.Setenv("METERFILL_CONFIG", file)
	t.Setenv("METERFILL_ENGINE_BATCH_WORKERS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	// File overrides the default.
	assert.Equal(t, 9100, cfg.Server.Port)
	// Environment overrides the file.
	assert.Equal(t, 5, cfg.Engine.BatchWorkers)
	// Untouched values keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "meterfill.yml")
	require.NoError(t, os.WriteFile(file, []byte("server: [broken"), 0644))

	t.Setenv("METERFILL_CONFIG", file)
	_, err := Load()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ReadingsDir = filepath.Join(dir, "data", "readings")
	cfg.Paths.ReportsDir = filepath.Join(dir, "data", "reports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.Paths.ReadingsDir)
	assert.DirExists(t, cfg.Paths.LogsDir)
}
