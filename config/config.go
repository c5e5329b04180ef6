// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Drivers lists the supported database drivers.
var Drivers = []string{"sqlite", "postgres", "mysql"}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Schema   SchemaConfig   `yaml:"schema"`
	Queue    QueueConfig    `yaml:"queue"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the database the schema is read from.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "mysql"
	DSN    string `yaml:"dsn"`

	// Schema is the postgres schema holding the tables (default: public).
	Schema string `yaml:"schema,omitempty"`

	// Migrate creates missing sqlite tables from definitions that list
	// their columns.
	Migrate bool `yaml:"migrate"`
}

// SchemaConfig configures model definitions.
type SchemaConfig struct {
	// Definitions is a YAML file or a directory of them.
	Definitions string `yaml:"definitions"`

	// Watch re-applies definitions when the files change.
	Watch bool `yaml:"watch"`

	// LoadOnStart reads table columns for every model at startup. nil
	// means true.
	LoadOnStart *bool `yaml:"load_on_start,omitempty"`
}

// ShouldLoadOnStart reports whether columns are read at startup.
func (s SchemaConfig) ShouldLoadOnStart() bool {
	return s.LoadOnStart == nil || *s.LoadOnStart
}

// QueueConfig configures the job queue used for deferred work.
type QueueConfig struct {
	Adapter     string      `yaml:"adapter"` // "memory" or "redis"
	Name        string      `yaml:"name"`
	MaxAttempts int         `yaml:"max_attempts"`
	Redis       RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis queue adapter.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username,omitempty"`
	Password     string        `yaml:"password,omitempty"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes. ${VAR} references are
// expanded and TYPEMAP_* variables override file values.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	TYPEMAP_SERVER_HOST        - Server host (default: 0.0.0.0)
//	TYPEMAP_SERVER_PORT        - Server port (default: 8080)
//	TYPEMAP_DATABASE_DRIVER    - sqlite, postgres or mysql (default: sqlite)
//	TYPEMAP_DATABASE_DSN       - Connection string (default: typemap.db for sqlite)
//	TYPEMAP_DATABASE_SCHEMA    - Postgres schema (default: public)
//	TYPEMAP_DATABASE_MIGRATE   - Create sqlite tables from definitions
//	TYPEMAP_SCHEMA_DEFINITIONS - Definitions file or directory
//	TYPEMAP_SCHEMA_WATCH       - Re-apply definitions on change
//	TYPEMAP_QUEUE_ADAPTER      - memory or redis (default: memory)
//	TYPEMAP_REDIS_ADDR         - Redis address for the redis queue
//	TYPEMAP_LOG_LEVEL          - debug, info, warn, error (default: info)
//	TYPEMAP_LOG_FORMAT         - json or console (default: json)
//	TYPEMAP_METRICS_ENABLED    - Enable /metrics (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies TYPEMAP_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TYPEMAP_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TYPEMAP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TYPEMAP_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TYPEMAP_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("TYPEMAP_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TYPEMAP_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TYPEMAP_DATABASE_SCHEMA"); v != "" {
		cfg.Database.Schema = v
	}
	if v := os.Getenv("TYPEMAP_DATABASE_MIGRATE"); v != "" {
		cfg.Database.Migrate = parseBool(v)
	}

	if v := os.Getenv("TYPEMAP_SCHEMA_DEFINITIONS"); v != "" {
		cfg.Schema.Definitions = v
	}
	if v := os.Getenv("TYPEMAP_SCHEMA_WATCH"); v != "" {
		cfg.Schema.Watch = parseBool(v)
	}
	if v := os.Getenv("TYPEMAP_SCHEMA_LOAD_ON_START"); v != "" {
		load := parseBool(v)
		cfg.Schema.LoadOnStart = &load
	}

	if v := os.Getenv("TYPEMAP_QUEUE_ADAPTER"); v != "" {
		cfg.Queue.Adapter = v
	}
	if v := os.Getenv("TYPEMAP_QUEUE_NAME"); v != "" {
		cfg.Queue.Name = v
	}
	if v := os.Getenv("TYPEMAP_REDIS_ADDR"); v != "" {
		cfg.Queue.Redis.Addr = v
	}
	if v := os.Getenv("TYPEMAP_REDIS_PASSWORD"); v != "" {
		cfg.Queue.Redis.Password = v
	}
	if v := os.Getenv("TYPEMAP_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Redis.DB = n
		}
	}

	if v := os.Getenv("TYPEMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TYPEMAP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("TYPEMAP_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TYPEMAP_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "typemap.db"
	}
	if cfg.Database.Schema == "" && cfg.Database.Driver == "postgres" {
		cfg.Database.Schema = "public"
	}

	if cfg.Queue.Adapter == "" {
		cfg.Queue.Adapter = "memory"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "default"
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Queue.Redis.Prefix == "" {
		cfg.Queue.Redis.Prefix = "typemap:jobs"
	}
	if cfg.Queue.Redis.PollInterval == 0 {
		cfg.Queue.Redis.PollInterval = time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validDrivers := map[string]bool{}
	for _, d := range Drivers {
		validDrivers[d] = true
	}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: %s, got %q", strings.Join(Drivers, ", "), cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Migrate && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.migrate is only supported for sqlite")
	}

	if cfg.Schema.Watch && cfg.Schema.Definitions == "" {
		return fmt.Errorf("schema.watch requires schema.definitions")
	}

	validAdapters := map[string]bool{"memory": true, "redis": true}
	if !validAdapters[cfg.Queue.Adapter] {
		return fmt.Errorf("queue.adapter must be 'memory' or 'redis', got %q", cfg.Queue.Adapter)
	}
	if cfg.Queue.Adapter == "redis" && cfg.Queue.Redis.Addr == "" {
		return fmt.Errorf("queue.redis.addr is required when queue.adapter is 'redis'")
	}
	if cfg.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", cfg.Queue.MaxAttempts)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
