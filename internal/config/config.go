// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and chart artifacts (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Market oracle (out-of-process analysis service)
	OracleURL     string
	OracleTimeout time.Duration

	// Alert engine thresholds (percent)
	ProfitThreshold  float64 // Close position when P/L rises above this
	LossThreshold    float64 // Positive magnitude, compared against the negative P/L
	BuyDownThreshold float64 // Minor-loss band that may suggest adding shares

	// Sweep scheduling
	SweepInterval time.Duration // Interval between alert sweeps
	SweepWorkers  int           // Max users evaluated concurrently

	// Web Push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string // mailto: contact passed to push services

	// Optional S3-compatible chart artifact mirror (disabled when unset)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCKWATCH_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		OracleURL:     getEnv("ORACLE_URL", "http://localhost:9000"),
		OracleTimeout: getEnvAsDuration("ORACLE_TIMEOUT", 12*time.Second),

		ProfitThreshold:  getEnvAsFloat("PROFIT_THRESHOLD", 5.0),
		LossThreshold:    getEnvAsFloat("LOSS_THRESHOLD", 5.0),
		BuyDownThreshold: getEnvAsFloat("BUY_DOWN_THRESHOLD", -2.0),

		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 10*time.Minute),
		SweepWorkers:  getEnvAsInt("SWEEP_WORKERS", 4),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: getEnv("VAPID_SUBSCRIBER", "mailto:alerts@localhost"),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path of the sqlite database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "stockwatch.db")
}

// ChartDir returns the directory chart artifacts are written to
func (c *Config) ChartDir() string {
	return filepath.Join(c.DataDir, "charts")
}

// PushEnabled reports whether Web Push delivery is configured
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// S3Enabled reports whether the S3 artifact mirror is configured
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.OracleURL == "" {
		return fmt.Errorf("ORACLE_URL is required")
	}
	if c.ProfitThreshold <= 0 {
		return fmt.Errorf("PROFIT_THRESHOLD must be positive, got %v", c.ProfitThreshold)
	}
	if c.LossThreshold <= 0 {
		return fmt.Errorf("LOSS_THRESHOLD must be a positive magnitude, got %v", c.LossThreshold)
	}
	if c.BuyDownThreshold >= 0 {
		return fmt.Errorf("BUY_DOWN_THRESHOLD must be negative, got %v", c.BuyDownThreshold)
	}
	if c.SweepWorkers < 1 {
		return fmt.Errorf("SWEEP_WORKERS must be at least 1, got %d", c.SweepWorkers)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
