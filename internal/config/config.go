package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Oversight
	CallbackJWTSecret string
	OversightTimeout  time.Duration

	// Execution
	ExecMaxAttempts int
	ExecBackoff     time.Duration

	// Market data
	MarketRateLimit float64

	// Risk engine threshold overrides (optional YAML file)
	RiskConfigPath string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		CallbackJWTSecret: getEnv("CALLBACK_JWT_SECRET", "fallback-secret-key-for-dev-only"),
		OversightTimeout:  getDuration("OVERSIGHT_TIMEOUT", 24*time.Hour),
		ExecMaxAttempts:   getInt("EXEC_MAX_ATTEMPTS", 3),
		ExecBackoff:       getDuration("EXEC_BACKOFF", 500*time.Millisecond),
		MarketRateLimit:   getFloat("MARKET_RATE_LIMIT", 50),
		RiskConfigPath:    getEnv("RISK_CONFIG_PATH", ""),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %g\n", key, raw, defaultValue)
		return defaultValue
	}
	return f
}
