package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// AI generation
	GenAIBaseURL string
	GenAIAPIKey  string

	// Upsert engine
	SceneBatchSize int

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		GenAIBaseURL: getEnv("GENAI_API_BASE_URL", "https://api.genai.example.com/v1/"),
		GenAIAPIKey:  getEnv("GENAI_API_KEY", ""),

		SceneBatchSize: getEnvInt("SCENE_BATCH_SIZE", 25),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
