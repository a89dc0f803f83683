package database

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"tradewarden/internal/logger"
)

// Config holds the postgres connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewConfig reads connection settings from the environment, loading .env
// first when present.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absent .env is normal outside local development.
		logger.Get().Debug("no .env file found, using environment variables")
	}

	return &Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "tradewarden"),
		Password: getEnv("DB_PASSWORD", "tradewarden"),
		DBName:   getEnv("DB_NAME", "tradewarden"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}, nil
}

// DSN returns the keyword/value connection string gorm consumes.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres:// connection URL golang-migrate consumes.
func (c *Config) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
