package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sso"
	"github.com/platinummonkey/warden/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database database.Config

	// Identity resolution
	Identity sso.Config

	// Blob storage configuration
	Storage storage.Config

	// RolesFile optionally replaces the built-in role table
	RolesFile string

	// Redis-backed upload rate limiting
	RateLimit RateLimitConfig

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

	MaxRequestBytes int64
	AllowedOrigins  []string
}

// RateLimitConfig configures the upload rate limiter. An empty RedisURL
// disables it.
type RateLimitConfig struct {
	RedisURL     string
	UploadLimit  int
	UploadWindow time.Duration
}

// Enabled reports whether a Redis server was configured
func (c RateLimitConfig) Enabled() bool {
	return c.RedisURL != ""
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
	OTelSampleRatio    float64
}

// OTel converts the settings for observability.InitOTel
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Identity:      loadIdentityConfig(),
		Storage:       loadStorageConfig(),
		RolesFile:     getEnv("WARDEN_ROLES_FILE", ""),
		RateLimit:     loadRateLimitConfig(),
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
		Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
		Port:            getEnv("WARDEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WARDEN_HEALTH_PORT", "9090"),
		MaxRequestBytes: getEnvInt64("WARDEN_MAX_REQUEST_BYTES", 12<<20),
		AllowedOrigins:  getEnvList("WARDEN_CORS_ALLOWED_ORIGINS"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() database.Config {
	cfg := database.DefaultConfig()

	if driver := getEnv("WARDEN_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if url := getEnv("WARDEN_DATABASE_URL", ""); url != "" {
		cfg.URL = url
	}
	cfg.MaxOpenConns = getEnvInt("WARDEN_DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.MaxIdleConns = getEnvInt("WARDEN_DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.ConnMaxLifetime = getEnvDuration("WARDEN_DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)

	return cfg
}

// loadIdentityConfig loads identity provider configuration from environment
func loadIdentityConfig() sso.Config {
	return sso.Config{
		Mode: sso.Mode(strings.ToLower(getEnv("WARDEN_IDENTITY_MODE", string(sso.ModeOIDC)))),
		OIDC: sso.OIDCConfig{
			IssuerURL: getEnv("WARDEN_OIDC_ISSUER_URL", ""),
			ClientID:  getEnv("WARDEN_OIDC_CLIENT_ID", ""),
			CacheSize: getEnvInt("WARDEN_OIDC_CACHE_SIZE", 0),
		},
	}
}

// loadStorageConfig loads blob storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("WARDEN_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = strings.ToLower(storageType)
	}
	if uploadDir := getEnv("WARDEN_UPLOAD_DIR", ""); uploadDir != "" {
		cfg.UploadDir = uploadDir
	}

	// S3 config
	if s3Endpoint := getEnv("WARDEN_S3_ENDPOINT", ""); s3Endpoint != "" {
		cfg.S3Endpoint = s3Endpoint
	}
	if s3Region := getEnv("WARDEN_S3_REGION", ""); s3Region != "" {
		cfg.S3Region = s3Region
	}
	if s3Bucket := getEnv("WARDEN_S3_BUCKET", ""); s3Bucket != "" {
		cfg.S3Bucket = s3Bucket
	}
	if s3AccessKey := getEnv("WARDEN_S3_ACCESS_KEY", ""); s3AccessKey != "" {
		cfg.S3AccessKey = s3AccessKey
	}
	if s3SecretKey := getEnv("WARDEN_S3_SECRET_KEY", ""); s3SecretKey != "" {
		cfg.S3SecretKey = s3SecretKey
	}
	if s3Prefix, ok := os.LookupEnv("WARDEN_S3_PREFIX"); ok {
		cfg.S3Prefix = s3Prefix
	}
	if s3PublicBaseURL := getEnv("WARDEN_S3_PUBLIC_BASE_URL", ""); s3PublicBaseURL != "" {
		cfg.S3PublicBaseURL = s3PublicBaseURL
	}
	cfg.S3UsePathStyle = getEnvBool("WARDEN_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)
	cfg.S3CreateBucket = getEnvBool("WARDEN_S3_CREATE_BUCKET", cfg.S3CreateBucket)

	return cfg
}

// loadRateLimitConfig loads rate limiting configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RedisURL:     getEnv("WARDEN_REDIS_URL", ""),
		UploadLimit:  getEnvInt("WARDEN_UPLOAD_RATE_LIMIT", 30),
		UploadWindow: getEnvDuration("WARDEN_UPLOAD_RATE_WINDOW", time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("WARDEN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("WARDEN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("WARDEN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("WARDEN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("WARDEN_OTEL_SERVICE_NAME", "warden"),
		OTelServiceVersion: getEnv("WARDEN_OTEL_SERVICE_VERSION", ""),
		OTelInsecure:       getEnvBool("WARDEN_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("WARDEN_OTEL_SAMPLE_RATIO", 1),
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

	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	switch c.Identity.Mode {
	case sso.ModeOIDC:
		if err := c.Identity.OIDC.Validate(); err != nil {
			return fmt.Errorf("invalid OIDC configuration: %w", err)
		}
	case sso.ModeHeader:
	default:
		return fmt.Errorf("invalid identity mode: %s (must be oidc or header)", c.Identity.Mode)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}

	if c.RateLimit.Enabled() {
		if c.RateLimit.UploadLimit <= 0 {
			return fmt.Errorf("upload rate limit must be positive")
		}
		if c.RateLimit.UploadWindow <= 0 {
			return fmt.Errorf("upload rate window must be positive")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
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
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
