package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Usage store backend: "postgres" or "redis"
	UsageBackend string
	DatabaseUrl  string // Required when UsageBackend is "postgres"
	RedisUrl     string // Required when UsageBackend is "redis"

	// Timeout applied to individual usage store operations
	StoreTimeout time.Duration

	// Call metering cadence. Production uses one minute so each tick
	// books one call minute; tests and demos can shorten it.
	CallTickInterval time.Duration

	// Billing period length and how often lapsed periods are swept
	UsagePeriod        time.Duration
	ResetSweepInterval time.Duration

	// Translation provider. Only "mock" ships today; a real provider
	// slots in behind the same interface.
	TranslateProvider string

	// Application base URL (for attachment links)
	BaseURL string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Usage store defaults to Postgres
		UsageBackend: getEnv("USAGE_BACKEND", "postgres"),
		RedisUrl:     getEnv("REDIS_URL", ""),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		CallTickInterval: getEnvDuration("CALL_TICK_INTERVAL", time.Minute),

		UsagePeriod:        getEnvDuration("USAGE_PERIOD", 30*24*time.Hour),
		ResetSweepInterval: getEnvDuration("RESET_SWEEP_INTERVAL", time.Hour),

		TranslateProvider: getEnv("TRANSLATE_PROVIDER", "mock"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Validate usage backend configuration
	switch cfg.UsageBackend {
	case "postgres":
		cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
		if cfg.DatabaseUrl == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when USAGE_BACKEND is 'postgres'")
		}
	case "redis":
		if cfg.RedisUrl == "" {
			return nil, fmt.Errorf("REDIS_URL is required when USAGE_BACKEND is 'redis'")
		}
	default:
		return nil, fmt.Errorf("USAGE_BACKEND must be either 'postgres' or 'redis', got: %s", cfg.UsageBackend)
	}

	if cfg.CallTickInterval <= 0 {
		return nil, fmt.Errorf("CALL_TICK_INTERVAL must be positive, got: %s", cfg.CallTickInterval)
	}
	if cfg.UsagePeriod <= 0 || cfg.ResetSweepInterval <= 0 {
		return nil, fmt.Errorf("USAGE_PERIOD and RESET_SWEEP_INTERVAL must be positive")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate translation provider configuration
	if cfg.TranslateProvider != "mock" {
		return nil, fmt.Errorf("TRANSLATE_PROVIDER must be 'mock', got: %s", cfg.TranslateProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
