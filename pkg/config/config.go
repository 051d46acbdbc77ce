// Package config loads application configuration from environment
// variables and validates it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/casetrail/authd/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	BotCheck      BotCheckConfig
	Observability ObservabilityConfig
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
	URL         string
	MaxConns    int
	MinConns    int
	PingTimeout time.Duration
}

// RedisConfig holds session cache configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds credential and token parameters
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	LockoutThreshold int
	LockoutWindow    time.Duration

	VerificationTTL time.Duration
	// ReturnVerificationToken echoes the email verification token in the
	// register response. Intended for non-production environments only;
	// production delivers it exclusively through the mailer.
	ReturnVerificationToken bool
}

// BotCheckConfig holds bot-mitigation verification settings
type BotCheckConfig struct {
	Enabled bool
	URL     string
	Secret  string
	Timeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		BotCheck:      loadBotCheckConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AUTHD_HOST", "0.0.0.0"),
		Port:            getEnv("AUTHD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AUTHD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AUTHD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AUTHD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AUTHD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("AUTHD_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("AUTHD_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("AUTHD_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("AUTHD_POSTGRES_MIN_CONNS", 5),
		PingTimeout: getEnvDuration("AUTHD_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("AUTHD_REDIS_URL", "redis://localhost:6379"),
		Password:   getEnv("AUTHD_REDIS_PASSWORD", ""),
		DB:         getEnvInt("AUTHD_REDIS_DB", -1),
		MaxRetries: getEnvInt("AUTHD_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("AUTHD_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:               getEnv("AUTHD_JWT_SECRET", ""),
		AccessTokenTTL:          getEnvDuration("AUTHD_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:         getEnvDuration("AUTHD_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:              getEnvInt("AUTHD_BCRYPT_COST", 12),
		LockoutThreshold:        getEnvInt("AUTHD_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:           getEnvDuration("AUTHD_LOCKOUT_WINDOW", 30*time.Minute),
		VerificationTTL:         getEnvDuration("AUTHD_VERIFICATION_TTL", 24*time.Hour),
		ReturnVerificationToken: getEnvBool("AUTHD_RETURN_VERIFICATION_TOKEN", false),
	}
}

func loadBotCheckConfig() BotCheckConfig {
	return BotCheckConfig{
		Enabled: getEnvBool("AUTHD_BOTCHECK_ENABLED", false),
		URL:     getEnv("AUTHD_BOTCHECK_URL", ""),
		Secret:  getEnv("AUTHD_BOTCHECK_SECRET", ""),
		Timeout: getEnvDuration("AUTHD_BOTCHECK_TIMEOUT", 10*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("AUTHD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("AUTHD_METRICS_ENABLED", true),
	}
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
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 16 {
		return fmt.Errorf("bcrypt cost must be between 10 and 16")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		return fmt.Errorf("access token TTL must be shorter than refresh token TTL")
	}
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("lockout threshold must be at least 1")
	}
	if c.Auth.LockoutWindow <= 0 {
		return fmt.Errorf("lockout window must be positive")
	}

	if c.BotCheck.Enabled {
		if c.BotCheck.URL == "" {
			return fmt.Errorf("botcheck URL is required when botcheck is enabled")
		}
		if c.BotCheck.Secret == "" {
			return fmt.Errorf("botcheck secret is required when botcheck is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
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
