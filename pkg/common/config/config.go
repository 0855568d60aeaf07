// Package config loads gateway configuration from the environment and an
// optional config file using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EncryptionConfig configures the credential vault's crypto boundary
type EncryptionConfig struct {
	MasterKey string `mapstructure:"master_key"`
}

// DatabaseConfig configures the gateway's own store (integrations and
// approval tickets), not the tenant SQL integrations it executes against.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SQLDefaults carries security defaults applied to tenant SQL integrations
// that do not configure their own limits.
type SQLDefaults struct {
	MaxResultRows  int `mapstructure:"max_result_rows"`
	QueryTimeoutMs int `mapstructure:"query_timeout_ms"`
	MaxPoolSize    int `mapstructure:"max_pool_size"`
}

// SandboxConfig configures the client for the external connector runtime
type SandboxConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// LoggingConfig configures the standard logger
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config holds the complete gateway configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Encryption  EncryptionConfig `mapstructure:"encryption"`
	Database    DatabaseConfig   `mapstructure:"database"`
	SQL         SQLDefaults      `mapstructure:"sql"`
	Sandbox     SandboxConfig    `mapstructure:"sandbox"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// Load reads configuration from the environment (GATEWAY_ prefix) and, when
// configPath is non-empty, from the given YAML file. Environment values win.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_path", "file://migrations")
	v.SetDefault("sql.max_result_rows", 10000)
	v.SetDefault("sql.query_timeout_ms", 30000)
	v.SetDefault("sql.max_pool_size", 5)
	v.SetDefault("sandbox.request_timeout", 60*time.Second)
	v.SetDefault("sandbox.max_retries", 2)
	v.SetDefault("sandbox.breaker_threshold", 5)
	v.SetDefault("sandbox.breaker_cooldown", 30*time.Second)
	v.SetDefault("logging.level", "INFO")

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every deployment must set
func (c *Config) Validate() error {
	if c.Encryption.MasterKey == "" {
		return fmt.Errorf("encryption.master_key is required")
	}
	if c.SQL.MaxPoolSize <= 0 {
		return fmt.Errorf("sql.max_pool_size must be positive")
	}
	return nil
}
