package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port            string `yaml:"port" env:"SERVER_PORT"`
		Mode            string `yaml:"mode" env:"SERVER_MODE"`
		StoragePath     string `yaml:"storage_path" env:"SERVER_STORAGE_PATH"`
		PublicURL       string `yaml:"public_url" env:"SERVER_PUBLIC_URL"`
		MaxUploadSizeMB int    `yaml:"max_upload_size_mb" env:"SERVER_MAX_UPLOAD_SIZE_MB"`
		ShutdownTimeout string `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
		AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE"`
	} `yaml:"database"`

	JWT struct {
		Secret                 string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration  string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		RefreshTokenExpiration string `yaml:"refresh_token_expiration" env:"JWT_REFRESH_TOKEN_EXPIRATION"`
		Issuer                 string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Email struct {
		// Provider is one of smtp, sendgrid or log.
		Provider       string `yaml:"provider" env:"EMAIL_PROVIDER"`
		Host           string `yaml:"host" env:"EMAIL_HOST"`
		Port           int    `yaml:"port" env:"EMAIL_PORT"`
		Username       string `yaml:"username" env:"EMAIL_USERNAME"`
		Password       string `yaml:"password" env:"EMAIL_PASSWORD"`
		FromName       string `yaml:"from_name" env:"EMAIL_FROM_NAME"`
		FromEmail      string `yaml:"from_email" env:"EMAIL_FROM_EMAIL"`
		UseTLS         bool   `yaml:"use_tls" env:"EMAIL_USE_TLS"`
		SubjectPrefix  string `yaml:"subject_prefix" env:"EMAIL_SUBJECT_PREFIX"`
		SendGridAPIKey string `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	} `yaml:"email"`

	Dispatcher struct {
		Enabled        bool   `yaml:"enabled" env:"DISPATCHER_ENABLED"`
		PollInterval   string `yaml:"poll_interval" env:"DISPATCHER_POLL_INTERVAL"`
		BatchSize      int    `yaml:"batch_size" env:"DISPATCHER_BATCH_SIZE"`
		Concurrency    int    `yaml:"concurrency" env:"DISPATCHER_CONCURRENCY"`
		MaxAttempts    int    `yaml:"max_attempts" env:"DISPATCHER_MAX_ATTEMPTS"`
		InitialBackoff string `yaml:"initial_backoff" env:"DISPATCHER_INITIAL_BACKOFF"`
		MaxBackoff     string `yaml:"max_backoff" env:"DISPATCHER_MAX_BACKOFF"`
		Lease          string `yaml:"lease" env:"DISPATCHER_LEASE"`
	} `yaml:"dispatcher"`
}

// LoadConfig loads configuration from a file, a .env file and environment
// variables, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadDotEnv reads .env (or the file named by ENV_FILE) without overriding
// variables already present in the environment.
func loadDotEnv() error {
	path := GetEnv("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.StoragePath = "./uploads"
	config.Server.PublicURL = "/api/v1"
	config.Server.MaxUploadSizeMB = 10
	config.Server.ShutdownTimeout = "15s"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "aits"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 2
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"
	config.Database.AutoMigrate = true

	config.JWT.AccessTokenExpiration = "60m"
	config.JWT.RefreshTokenExpiration = "168h"
	config.JWT.Issuer = "aits"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Email.Provider = "log"
	config.Email.Port = 587
	config.Email.FromName = "Academic Issue Tracking System"
	config.Email.FromEmail = "no-reply@aits.local"
	config.Email.SubjectPrefix = "[AITS]"

	config.Dispatcher.Enabled = true
	config.Dispatcher.PollInterval = "5s"
	config.Dispatcher.BatchSize = 25
	config.Dispatcher.Concurrency = 4
	config.Dispatcher.MaxAttempts = 8
	config.Dispatcher.InitialBackoff = "30s"
	config.Dispatcher.MaxBackoff = "1h"
	config.Dispatcher.Lease = "2m"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	durations := map[string]string{
		"JWT access token expiration":  config.JWT.AccessTokenExpiration,
		"JWT refresh token expiration": config.JWT.RefreshTokenExpiration,
		"database connection lifetime": config.Database.ConnMaxLifetime,
		"server shutdown timeout":      config.Server.ShutdownTimeout,
		"dispatcher poll interval":     config.Dispatcher.PollInterval,
		"dispatcher initial backoff":   config.Dispatcher.InitialBackoff,
		"dispatcher max backoff":       config.Dispatcher.MaxBackoff,
		"dispatcher lease":             config.Dispatcher.Lease,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
	}

	switch strings.ToLower(config.Email.Provider) {
	case "log":
	case "smtp":
		if config.Email.Host == "" {
			return fmt.Errorf("email host is required for the smtp provider")
		}
	case "sendgrid":
		if config.Email.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid api key is required for the sendgrid provider")
		}
	default:
		return fmt.Errorf("unknown email provider %q", config.Email.Provider)
	}

	if config.Dispatcher.BatchSize <= 0 || config.Dispatcher.Concurrency <= 0 || config.Dispatcher.MaxAttempts <= 0 {
		return fmt.Errorf("dispatcher batch size, concurrency and max attempts must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in release mode.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production" || c.Server.Mode == "release"
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
