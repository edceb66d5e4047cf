package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadTestConfig loads database settings for integration tests from TEST_DB_* variables.
// When any of them is missing an empty Config is returned so tests can fall back to a default DSN.
func LoadTestConfig() (*Config, error) {
	_ = godotenv.Load("../../../../.env")
	_ = godotenv.Load()

	cfg := &Config{}
	keys := []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"}
	for _, k := range keys {
		if os.Getenv(k) == "" {
			return cfg, nil
		}
	}

	port, err := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid TEST_DB_PORT: %w", err)
	}

	cfg.Database = DatabaseConfig{
		Host:     os.Getenv("TEST_DB_HOST"),
		Port:     port,
		User:     os.Getenv("TEST_DB_USER"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   os.Getenv("TEST_DB_NAME"),
	}
	cfg.JWT.Secret = stringOrDefault("TEST_JWT_SECRET", "test-secret")
	cfg.APIKey = os.Getenv("TEST_API_KEY")

	return cfg, nil
}
