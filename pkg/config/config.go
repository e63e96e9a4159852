// Package config loads application configuration from HSEAI_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/safesight/hseai/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Provider ProviderConfig

	// Logging
	LogLevel observability.LogLevel

	// Cron expression for the monthly usage counter reset.
	UsageResetSchedule string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis cache configuration. Redis is optional; when Addr
// is empty the service runs with the in-process cache only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds identity-token verification settings
type AuthConfig struct {
	TokenSecret string
	TokenIssuer string
}

// ProviderConfig holds text-generation provider settings
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HSEAI_HOST", "0.0.0.0"),
			Port:            getEnv("HSEAI_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HSEAI_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HSEAI_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:     getEnvDuration("HSEAI_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HSEAI_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("HSEAI_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("HSEAI_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("HSEAI_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("HSEAI_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("HSEAI_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("HSEAI_REDIS_ADDR", ""),
			Password: getEnv("HSEAI_REDIS_PASSWORD", ""),
			DB:       getEnvInt("HSEAI_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("HSEAI_TOKEN_SECRET", ""),
			TokenIssuer: getEnv("HSEAI_TOKEN_ISSUER", ""),
		},
		Provider: ProviderConfig{
			APIKey:  getEnv("HSEAI_PROVIDER_API_KEY", ""),
			BaseURL: getEnv("HSEAI_PROVIDER_BASE_URL", ""),
			Model:   getEnv("HSEAI_PROVIDER_MODEL", ""),
			Timeout: getEnvDuration("HSEAI_PROVIDER_TIMEOUT", 90*time.Second),
		},
		LogLevel:           parseLogLevel(getEnv("HSEAI_LOG_LEVEL", "info")),
		UsageResetSchedule: getEnv("HSEAI_USAGE_RESET_SCHEDULE", "15 0 1 * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key is required")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
