// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the growth database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Analytics  AnalyticsConfig
	Reranking  RerankingConfig
	SnapshotS3 *SnapshotS3Config // nil when snapshot archival is disabled
}

// AnalyticsConfig configures the analytics collaborator used for realized attribution
type AnalyticsConfig struct {
	BaseURL    string
	PropertyID string
	APIKey     string
	Timeout    time.Duration
}

// RerankingConfig configures the nightly re-ranking job
type RerankingConfig struct {
	Schedule             string        // cron expression with seconds field
	ProvenROIThreshold   float64       // realized 28-day ROI above which an action is "proven"
	MaxAttempts          int           // attempts per (action, window) pair for transient failures
	Backoff              time.Duration // base backoff between attempts, doubled per retry
	MinDaysSinceExecuted int
}

// SnapshotS3Config holds the S3-compatible bucket used to archive published rankings
type SnapshotS3Config struct {
	Bucket          string
	Endpoint        string // optional, e.g. a Cloudflare R2 account endpoint
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	RetentionDays   int // archives older than this are rotated out; 0 keeps everything
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Analytics: AnalyticsConfig{
			BaseURL:    getEnv("ANALYTICS_BASE_URL", "https://analyticsdata.googleapis.com/v1beta"),
			PropertyID: getEnv("ANALYTICS_PROPERTY_ID", ""),
			APIKey:     getEnv("ANALYTICS_API_KEY", ""),
			Timeout:    getEnvAsDuration("ANALYTICS_TIMEOUT", 30*time.Second),
		},
		Reranking: RerankingConfig{
			Schedule:             getEnv("RERANK_SCHEDULE", "0 0 3 * * *"), // 03:00 daily
			ProvenROIThreshold:   getEnvAsFloat("PROVEN_ROI_THRESHOLD", 1.0),
			MaxAttempts:          getEnvAsInt("ATTRIBUTION_MAX_ATTEMPTS", 3),
			Backoff:              getEnvAsDuration("ATTRIBUTION_BACKOFF", 2*time.Second),
			MinDaysSinceExecuted: 7,
		},
		SnapshotS3: loadSnapshotS3Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path of the growth database inside DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "growth.db")
}

// Validate checks if required configuration is present and well-formed
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Reranking.Schedule); err != nil {
		return fmt.Errorf("invalid RERANK_SCHEDULE %q: %w", c.Reranking.Schedule, err)
	}

	if c.Reranking.MaxAttempts < 1 {
		return fmt.Errorf("ATTRIBUTION_MAX_ATTEMPTS must be at least 1, got %d", c.Reranking.MaxAttempts)
	}
	if c.Reranking.Backoff < 0 {
		return fmt.Errorf("ATTRIBUTION_BACKOFF must not be negative")
	}

	// Note: analytics credentials are optional; without a property id the nightly
	// job still re-ranks from stored results but cannot fetch new ones.

	return nil
}

func loadSnapshotS3Config() *SnapshotS3Config {
	bucket := getEnv("SNAPSHOT_BUCKET", "")
	if bucket == "" {
		return nil
	}
	return &SnapshotS3Config{
		Bucket:          bucket,
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		Region:          getEnv("S3_REGION", "auto"),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		Prefix:          strings.Trim(getEnv("SNAPSHOT_PREFIX", "rankings"), "/"),
		RetentionDays:   getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 90),
	}
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
