package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the task router
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Provider API Keys
	OpenAIAPIKey string

	// Subscription cache
	SubscriptionTTLSeconds int

	// Fallback executor
	MaxRetriesPerModel int
	BackoffBaseMs      int
	BackoffCapMs       int

	// Routing policy
	AllowUnknownTaskTypes bool

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		SubscriptionTTLSeconds: getEnvInt("SUBSCRIPTION_TTL_SECONDS", 300),
		MaxRetriesPerModel:     getEnvInt("MAX_RETRIES_PER_MODEL", 2),
		BackoffBaseMs:          getEnvInt("BACKOFF_BASE_MS", 500),
		BackoffCapMs:           getEnvInt("BACKOFF_CAP_MS", 8000),
		AllowUnknownTaskTypes:  getEnvBool("ALLOW_UNKNOWN_TASK_TYPES", true),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxRetriesPerModel < 1 {
		return nil, fmt.Errorf("MAX_RETRIES_PER_MODEL must be at least 1")
	}
	if cfg.BackoffCapMs < cfg.BackoffBaseMs {
		return nil, fmt.Errorf("BACKOFF_CAP_MS must be >= BACKOFF_BASE_MS")
	}

	return cfg, nil
}

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
