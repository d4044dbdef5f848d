package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"billdesk/internal/logger"
)

type Config struct {
	// Database Configuration
	DBDriver    string
	DatabaseURL string

	// PDF Artifact Configuration
	InvoicesDir   string
	ViewBaseURL   string
	RenderTimeout time.Duration
	ChromePath    string

	// Scheduling Configuration
	InstallmentRemainder string

	// Optional: Redis render lock
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RenderLockTTL time.Duration

	// Optional: MinIO artifact archive
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool

	// Optional: Google Sheets register export
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := Default()

	var err error
	config.DBDriver = strings.ToLower(getEnv("DB_DRIVER", config.DBDriver))
	config.DatabaseURL = getEnv("DATABASE_URL", config.DatabaseURL)
	config.InvoicesDir = getEnv("INVOICES_DIR", config.InvoicesDir)
	config.ViewBaseURL = getEnv("VIEW_BASE_URL", config.ViewBaseURL)
	config.ChromePath = getEnv("CHROME_PATH", config.ChromePath)
	config.InstallmentRemainder = strings.ToLower(getEnv("INSTALLMENT_REMAINDER", config.InstallmentRemainder))
	config.RedisAddr = getEnv("REDIS_ADDR", config.RedisAddr)
	config.RedisPassword = getEnv("REDIS_PASSWORD", config.RedisPassword)
	config.MinioEndpoint = getEnv("MINIO_ENDPOINT", config.MinioEndpoint)
	config.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", config.MinioAccessKey)
	config.MinioSecretKey = getEnv("MINIO_SECRET_KEY", config.MinioSecretKey)
	config.MinioBucket = getEnv("MINIO_BUCKET", config.MinioBucket)
	config.GoogleSheetURL = getEnv("GOOGLE_SHEET_URL", config.GoogleSheetURL)
	config.GoogleSheetWorksheet = getEnv("GOOGLE_SHEET_WORKSHEET", config.GoogleSheetWorksheet)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.LogTimeFormat = getEnv("LOG_TIME_FORMAT", config.LogTimeFormat)
	config.LogOutput = getEnv("LOG_OUTPUT", config.LogOutput)

	if config.RenderTimeout, err = getDuration("RENDER_TIMEOUT", config.RenderTimeout); err != nil {
		return nil, err
	}
	if config.RenderLockTTL, err = getDuration("RENDER_LOCK_TTL", config.RenderLockTTL); err != nil {
		return nil, err
	}
	if config.RedisDB, err = getInt("REDIS_DB", config.RedisDB); err != nil {
		return nil, err
	}
	if config.MinioSecure, err = getBool("MINIO_SECURE", config.MinioSecure); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		DBDriver:             "sqlite",
		DatabaseURL:          "billdesk.db",
		InvoicesDir:          "invoices",
		ViewBaseURL:          "http://localhost:3000/invoice",
		RenderTimeout:        60 * time.Second,
		InstallmentRemainder: "drop",
		RenderLockTTL:        2 * time.Minute,
		MinioBucket:          "invoices",
		GoogleSheetWorksheet: "Invoices",
		LogLevel:             "info",
		LogFormat:            "console",
		LogTimeFormat:        time.RFC3339,
		LogOutput:            "stdout",
	}
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.InvoicesDir == "" {
		return fmt.Errorf("INVOICES_DIR is required")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive")
	}
	if c.RedisAddr != "" && c.RenderLockTTL <= c.RenderTimeout {
		return fmt.Errorf("RENDER_LOCK_TTL (%s) must be longer than RENDER_TIMEOUT (%s)", c.RenderLockTTL, c.RenderTimeout)
	}
	switch c.InstallmentRemainder {
	case "drop", "last":
	default:
		return fmt.Errorf("INSTALLMENT_REMAINDER must be drop or last, got %q", c.InstallmentRemainder)
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return b, nil
}
