package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the ingestion service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Workers  WorkersConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPPort    string
	Environment string
	LogLevel    string
	LogFormat   string // json or text
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Database       string
	SSLMode        string
	MaxConnections int
	MinConnections int
}

// ImportConfig holds report conversion configuration
type ImportConfig struct {
	// UseFirstSeen makes the parser prefer a flaw's first occurrence
	// date over its last occurrence date.
	UseFirstSeen bool

	// MaxUploadBytes caps the size of uploaded report files.
	MaxUploadBytes int64
}

// WorkersConfig holds background worker configuration
type WorkersConfig struct {
	InboxEnabled  bool
	InboxDir      string
	SweepInterval time.Duration

	CleanerEnabled bool
	Retention      time.Duration
	CleanInterval  time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:    getEnv("HTTP_PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "vulnfeed"),
			Password:       getEnv("DB_PASSWORD", "changeme"),
			Database:       getEnv("DB_NAME", "findings"),
			SSLMode:        getEnv("DB_SSLMODE", "prefer"),
			MaxConnections: getEnvInt("DB_MAX_CONNS", 25),
			MinConnections: getEnvInt("DB_MIN_CONNS", 5),
		},
		Import: ImportConfig{
			UseFirstSeen:   getEnvBool("USE_FIRST_SEEN", false),
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),
		},
		Workers: WorkersConfig{
			InboxEnabled:   getEnvBool("INBOX_ENABLED", false),
			InboxDir:       getEnv("INBOX_DIR", "/var/lib/veracode-ingest/inbox"),
			SweepInterval:  getEnvDuration("INBOX_SWEEP_INTERVAL", 30*time.Second),
			CleanerEnabled: getEnvBool("CLEANER_ENABLED", true),
			Retention:      getEnvDuration("IMPORT_RETENTION", 90*24*time.Hour),
			CleanInterval:  getEnvDuration("CLEAN_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Workers.InboxEnabled && c.Workers.InboxDir == "" {
		return fmt.Errorf("INBOX_DIR is required when INBOX_ENABLED is set")
	}
	if c.Workers.SweepInterval <= 0 {
		return fmt.Errorf("INBOX_SWEEP_INTERVAL must be positive")
	}
	if c.Workers.CleanerEnabled && c.Workers.Retention <= 0 {
		return fmt.Errorf("IMPORT_RETENTION must be positive when CLEANER_ENABLED is set")
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions to get environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
