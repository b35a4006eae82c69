// Package config loads server configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port            int
	DatabasePath    string
	PlanCatalogFile string
	AccrualInterval time.Duration
	LogLevel        string
	AllowedOrigins  []string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("failed to load .env file", zap.Error(err))
	}

	accrualInterval, err := getEnvDuration("ACCRUAL_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            getEnvInt("PORT", 8080),
		DatabasePath:    getEnvString("DATABASE_PATH", "mining.db"),
		PlanCatalogFile: getEnvString("PLAN_CATALOG_FILE", "plans.yaml"),
		AccrualInterval: accrualInterval,
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		AllowedOrigins:  []string{getEnvString("CORS_ORIGIN", "http://localhost:5173")},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
