package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Auth configuration
	Auth AuthConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Remote fetch configuration
	Fetch FetchConfig

	// Observability configuration
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
	URL string

	// Comma-separated read replica URLs. Balance and transaction reads go
	// to replicas when any are configured.
	ReplicaURLs string

	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// RedisConfig holds Redis configuration for the distributed rate limiter
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// AuthConfig holds identity provider configuration
type AuthConfig struct {
	// OIDC issuer URL for bearer token verification
	IssuerURL string
	ClientID  string

	// Emails allowed to impersonate teams via the x-team-id header
	AdminEmails []string
}

// RateLimitConfig holds sliding window limiter configuration
type RateLimitConfig struct {
	Window    time.Duration
	FreeLimit int
	PaidLimit int

	// Backend selects "memory" or "redis"
	Backend string

	CleanupInterval time.Duration
}

// FetchConfig bounds remote document retrieval
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxSizeBytes int64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		RateLimit:     loadRateLimitConfig(),
		Fetch:         loadFetchConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DOCUPROCESS_HOST", "0.0.0.0"),
		Port:            getEnv("DOCUPROCESS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DOCUPROCESS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DOCUPROCESS_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:     getEnvDuration("DOCUPROCESS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DOCUPROCESS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DOCUPROCESS_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("DOCUPROCESS_POSTGRES_URL", ""),
		ReplicaURLs: getEnv("DOCUPROCESS_POSTGRES_REPLICA_URLS", ""),
		MaxConns:    getEnvInt("DOCUPROCESS_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("DOCUPROCESS_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("DOCUPROCESS_POSTGRES_TIMEOUT", 30*time.Second),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("DOCUPROCESS_REDIS_URL", ""),
		Password:   getEnv("DOCUPROCESS_REDIS_PASSWORD", ""),
		DB:         getEnvInt("DOCUPROCESS_REDIS_DB", 0),
		PoolSize:   getEnvInt("DOCUPROCESS_REDIS_POOL_SIZE", 10),
		MaxRetries: getEnvInt("DOCUPROCESS_REDIS_MAX_RETRIES", 3),
	}
}

// loadAuthConfig loads identity provider configuration from environment
func loadAuthConfig() AuthConfig {
	cfg := AuthConfig{
		IssuerURL: getEnv("DOCUPROCESS_OIDC_ISSUER_URL", ""),
		ClientID:  getEnv("DOCUPROCESS_OIDC_CLIENT_ID", ""),
	}

	if admins := getEnv("DOCUPROCESS_ADMIN_EMAILS", ""); admins != "" {
		for _, email := range strings.Split(admins, ",") {
			if email = strings.TrimSpace(strings.ToLower(email)); email != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, email)
			}
		}
	}

	return cfg
}

// loadRateLimitConfig loads rate limiter configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Window:          getEnvDuration("DOCUPROCESS_RATELIMIT_WINDOW", 60*time.Second),
		FreeLimit:       getEnvInt("DOCUPROCESS_RATELIMIT_FREE", 60),
		PaidLimit:       getEnvInt("DOCUPROCESS_RATELIMIT_PAID", 120),
		Backend:         getEnv("DOCUPROCESS_RATELIMIT_BACKEND", "memory"),
		CleanupInterval: getEnvDuration("DOCUPROCESS_RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// loadFetchConfig loads remote fetch configuration from environment
func loadFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:      getEnvDuration("DOCUPROCESS_FETCH_TIMEOUT", 30*time.Second),
		MaxRedirects: getEnvInt("DOCUPROCESS_FETCH_MAX_REDIRECTS", 5),
		MaxSizeBytes: getEnvInt64("DOCUPROCESS_FETCH_MAX_SIZE_BYTES", 10*1024*1024),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("DOCUPROCESS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DOCUPROCESS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DOCUPROCESS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DOCUPROCESS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DOCUPROCESS_OTEL_SERVICE_NAME", "docuprocess-gateway"),
		OTelServiceVersion: getEnv("DOCUPROCESS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DOCUPROCESS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate auth config
	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}

	// Validate rate limit config
	if c.RateLimit.FreeLimit <= 0 || c.RateLimit.PaidLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
	}

	// Validate fetch config
	if c.Fetch.MaxSizeBytes <= 0 {
		return fmt.Errorf("fetch max size must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// ReplicaURLList splits the comma-separated replica URLs
func (c *DatabaseConfig) ReplicaURLList() []string {
	if c.ReplicaURLs == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(c.ReplicaURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
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
