// Package config loads the application configuration: compiled
// defaults, overridden by an optional YAML file, overridden by
// METERFILL_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix is the environment variable prefix (METERFILL_SERVER_PORT etc).
const envPrefix = "METERFILL"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains CORS and rate limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LEVEL"`
	Output    string `yaml:"output" envconfig:"OUTPUT"` // stdout, file, both
	FilePath  string `yaml:"file_path" envconfig:"FILE_PATH"`
	AddSource bool   `yaml:"add_source" envconfig:"ADD_SOURCE"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReadingsDir   string `yaml:"readings_dir" envconfig:"READINGS_DIR"`
	ReportsDir    string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	IntensityFile string `yaml:"intensity_file" envconfig:"INTENSITY_FILE"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// EngineConfig tunes the batch evaluation layer. The engine itself has
// no knobs; rule order and window size are the product.
type EngineConfig struct {
	BatchWorkers int `yaml:"batch_workers" envconfig:"BATCH_WORKERS"`
}

// DatabaseConfig configures the optional Postgres run store. Disabled
// unless explicitly enabled; the engine never touches it.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	URL     string `yaml:"url" envconfig:"URL"`
	Schema  string `yaml:"schema" envconfig:"SCHEMA"`
	RunTag  string `yaml:"run_tag" envconfig:"RUN_TAG"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	SendBufferSize  int `yaml:"send_buffer_size" envconfig:"SEND_BUFFER_SIZE"`
}

// TelemetryConfig toggles the observability surfaces
type TelemetryConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	Environment   string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// DefaultConfig returns a configuration usable with zero environment:
// local server, console logging, no database.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/meterfill.log",
		},
		Paths: PathsConfig{
			DataDir:       "data",
			ReadingsDir:   "data/readings",
			ReportsDir:    "data/reports",
			IntensityFile: "",
			LogsDir:       "logs",
		},
		Engine: EngineConfig{
			BatchWorkers: 8,
		},
		Database: DatabaseConfig{
			Schema: "meterfill",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			SendBufferSize:  64,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			Environment:   "production",
		},
	}
}

// Load builds the effective configuration. Precedence, lowest to
// highest: compiled defaults, the YAML file (METERFILL_CONFIG or
// ./meterfill.yml), METERFILL_* environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := configFilePath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// configFilePath returns the config file to use, or "" when none
// exists.
func configFilePath() string {
	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		return path
	}
	for _, candidate := range []string{"meterfill.yml", "meterfill.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate checks the configuration for values that can never work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Engine.BatchWorkers <= 0 {
		return fmt.Errorf("engine batch workers must be positive, got %d", c.Engine.BatchWorkers)
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive when enabled")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database url is required when the run store is enabled")
	}
	if c.Paths.ReadingsDir == "" {
		return fmt.Errorf("readings directory is required")
	}
	return nil
}

// EnsureDirectories creates the directories the server writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReadingsDir, c.Paths.ReportsDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
