package config

import (
	"os"
	"strconv"
	"time"

	"datalens/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Upload   UploadConfig
	Database DatabaseConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// AIConfig holds settings for the question-answering provider
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Referer     string
	Title       string
}

// UploadConfig holds file upload limits
type UploadConfig struct {
	MaxBytes int64
}

// DatabaseConfig holds the optional usage ledger connection. An empty URL
// disables the ledger entirely.
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8000"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		AI: AIConfig{
			APIKey:      os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:     getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvOrDefault("LLM_MODEL", "meta-llama/llama-3.3-8b-instruct:free"),
			MaxTokens:   getEnvIntOrDefault("MAX_TOKENS", 1024),
			Temperature: getEnvFloatOrDefault("TEMPERATURE", 0.3),
			Timeout:     getEnvDurationOrDefault("AI_TIMEOUT", 60*time.Second),
			Referer:     getEnvOrDefault("AI_HTTP_REFERER", "https://datalens.local"),
			Title:       getEnvOrDefault("AI_APP_TITLE", "DataLens Analysis Platform"),
		},
		Upload: UploadConfig{
			MaxBytes: getEnvInt64OrDefault("MAX_UPLOAD_BYTES", 32<<20),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.AI.APIKey == "" {
		return errors.ConfigInvalid("OPENROUTER_API_KEY is required")
	}
	if config.Upload.MaxBytes <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_BYTES must be positive")
	}
	if config.AI.MaxTokens <= 0 {
		return errors.ConfigInvalid("MAX_TOKENS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
