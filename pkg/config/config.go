// Package config loads and watches the server configuration file. Files
// may be YAML or JSON; a handful of environment variables override the
// file for containerised deployments.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/flowgate/flowgate/pkg/domain"
)

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	// Backend is one of memory, file, postgres.
	Backend string `yaml:"backend" json:"backend"`
	Dir     string `yaml:"dir" json:"dir"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// StorageConfig selects the StoreData backend.
type StorageConfig struct {
	// Backend is one of memory, file, redis.
	Backend       string `yaml:"backend" json:"backend"`
	Dir           string `yaml:"dir" json:"dir"`
	RedisAddr     string `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword string `yaml:"redisPassword" json:"redisPassword"`
	RedisDB       int    `yaml:"redisDb" json:"redisDb"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	ServiceName string `yaml:"serviceName" json:"serviceName"`
	Environment string `yaml:"environment" json:"environment"`
	Insecure    bool   `yaml:"insecure" json:"insecure"`
}

// Config is the full server configuration.
type Config struct {
	Engine      domain.Config   `yaml:"engine" json:"engine"`
	Log         LogConfig       `yaml:"log" json:"log"`
	Audit       AuditConfig     `yaml:"audit" json:"audit"`
	Storage     StorageConfig   `yaml:"storage" json:"storage"`
	Telemetry   TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	MetricsAddr string          `yaml:"metricsAddr" json:"metricsAddr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine:    domain.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
		Audit:     AuditConfig{Backend: "memory"},
		Storage:   StorageConfig{Backend: "memory"},
		Telemetry: TelemetryConfig{ServiceName: "flowgate"},
	}
}

// Load reads and validates a configuration file, applying environment
// overrides last.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is operator-supplied at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML or JSON configuration bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config: %v", err)
		}
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries must not be negative")
	}
	if c.Engine.Retry.BackoffBase < 1 && c.Engine.Retry.BackoffBase != 0 {
		return fmt.Errorf("retry.backoffBase must be at least 1")
	}
	if c.Engine.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.maxSize must not be negative")
	}
	if c.Engine.Limits.MaxOperationsPerWorkflow <= 0 {
		return fmt.Errorf("limits.maxOperationsPerWorkflow must be positive")
	}
	if c.Engine.Limits.MaxDataModelBytes <= 0 {
		return fmt.Errorf("limits.maxDataModelBytes must be positive")
	}
	switch c.Audit.Backend {
	case "", "memory", "file", "postgres":
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}
	switch c.Storage.Backend {
	case "", "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Audit.Backend == "file" && c.Audit.Dir == "" {
		return fmt.Errorf("audit backend file requires audit.dir")
	}
	if c.Audit.Backend == "postgres" && c.Audit.DSN == "" {
		return fmt.Errorf("audit backend postgres requires audit.dsn")
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		return fmt.Errorf("storage backend redis requires storage.redisAddr")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FLOWGATE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("FLOWGATE_REDIS_ADDR"); v != "" {
		cfg.Storage.Backend = "redis"
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("FLOWGATE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.RedisDB = db
		}
	}
	if v := os.Getenv("FLOWGATE_AUDIT_DIR"); v != "" {
		cfg.Audit.Backend = "file"
		cfg.Audit.Dir = v
	}
	if v := os.Getenv("FLOWGATE_AUDIT_DSN"); v != "" {
		cfg.Audit.Backend = "postgres"
		cfg.Audit.DSN = v
	}
	if v := os.Getenv("FLOWGATE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}
