// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/tally/utils"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when present; real environment variables win over its values.
const DefaultEnvFile = ".env"

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host" env:"DB_HOST" validate:"required"`
	Port            int           `json:"port" env:"DB_PORT" validate:"min=1,max=65535"`
	Name            string        `json:"name" env:"DB_NAME" validate:"required"`
	User            string        `json:"user" env:"DB_USER" validate:"required"`
	Password        string        `json:"password" env:"DB_PASSWORD" validate:"required"`
	SSLMode         string        `json:"ssl_mode" env:"DB_SSL_MODE" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" validate:"min=1"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" validate:"min=0"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
	SlowQueryLog    bool          `json:"slow_query_log" env:"DB_SLOW_QUERY_LOG"`
	SlowQueryTime   time.Duration `json:"slow_query_time" env:"DB_SLOW_QUERY_TIME"`
}

// DSN returns the libpq keyword/value connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host" env:"SERVER_HOST"`
	Port              int           `json:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	BodyLimit         int           `json:"body_limit" env:"SERVER_BODY_LIMIT" validate:"gt=0"`
	ProxyHeader       string        `json:"proxy_header" env:"SERVER_PROXY_HEADER"`
	EnableCompression bool          `json:"enable_compression" env:"SERVER_ENABLE_COMPRESSION"`
}

// Address returns the host:port the HTTP server listens on
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type SecurityConfig struct {
	HSTSMaxAge int `json:"hsts_max_age" env:"HSTS_MAX_AGE" validate:"min=0"`

	// CORS
	AllowedOrigins   []string `json:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	AllowedMethods   []string `json:"allowed_methods" env:"CORS_ALLOWED_METHODS" validate:"min=1"`
	AllowedHeaders   []string `json:"allowed_headers" env:"CORS_ALLOWED_HEADERS"`
	AllowCredentials bool     `json:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAge       int      `json:"cors_max_age" env:"CORS_MAX_AGE" validate:"min=0"`

	// Content Security
	CSPPolicy      string `json:"csp_policy" env:"CSP_POLICY"`
	XFrameOptions  string `json:"x_frame_options" env:"X_FRAME_OPTIONS"`
	ReferrerPolicy string `json:"referrer_policy" env:"REFERRER_POLICY"`
}

type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Output     string `json:"output" env:"LOG_OUTPUT" validate:"oneof=stdout file both"`
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH" validate:"required_unless=Output stdout"`
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE" validate:"min=1"` // MB
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS" validate:"min=0"`
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE" validate:"min=0"` // days
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`

	EnableAccessLog bool `json:"enable_access_log" env:"LOG_ENABLE_ACCESS"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"METRICS_ENABLED"`
	Path    string `json:"path" env:"METRICS_PATH" validate:"omitempty,startswith=/"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled" env:"CACHE_ENABLED"`
	Provider        string        `json:"provider" env:"CACHE_PROVIDER" validate:"oneof=redis memory"`
	RedisURL        string        `json:"redis_url" env:"CACHE_REDIS_URL"`
	RedisDB         int           `json:"redis_db" env:"CACHE_REDIS_DB" validate:"min=0"`
	RedisPrefix     string        `json:"redis_prefix" env:"CACHE_REDIS_PREFIX"`
	DefaultTTL      time.Duration `json:"default_ttl" env:"CACHE_DEFAULT_TTL" validate:"gt=0"`
	CleanupInterval time.Duration `json:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" validate:"gt=0"`
}

type DeploymentConfig struct {
	Environment string `json:"environment" env:"APP_ENV" validate:"oneof=production staging development local test"`
	Version     string `json:"version" env:"VERSION"`
	CommitHash  string `json:"commit_hash" env:"COMMIT_HASH"`
	BuildTime   string `json:"build_time" env:"BUILD_TIME"`
}

// IsDevelopment reports whether developer-only routes should be exposed
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "local"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	return LoadProductionConfigFrom(DefaultEnvFile)
}

// LoadProductionConfigFrom loads envFile (if it exists) before reading the environment
func LoadProductionConfigFrom(envFile string) (*ProductionConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s file: %w", envFile, err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "tally"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 64*1024),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			HSTSMaxAge:       getEnvInt("HSTS_MAX_AGE", 31536000), // 1 year
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-Request-ID", "X-Inertia"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", utils.CORSMaxAge),
			CSPPolicy:        getEnvString("CSP_POLICY", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none';"),
			XFrameOptions:    getEnvString("X_FRAME_OPTIONS", "DENY"),
			ReferrerPolicy:   getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/tally/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			Provider:        getEnvString("CACHE_PROVIDER", "memory"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "tally:"),
			DefaultTTL:      getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Second),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 1*time.Minute),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from envFile if it exists.
// Variables already present in the environment are left untouched.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(envFile)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their environment variable name
func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if err := configValidator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !asValidationErrors(err, &validationErrors) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range validationErrors {
			errors = append(errors, validationMessage(fe))
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errors = append(errors, "METRICS_PATH is required when metrics are enabled")
	}

	// Redis needs a URL only when it is the active provider
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	return errors.As(err, target)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fe.Field() + " must be positive"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
