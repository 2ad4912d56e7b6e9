package config

import (
	"os"
	"strconv"
	"time"

	"battforge/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	AI       AIConfig
	Physics  PhysicsConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// AIConfig holds settings for the semantic classifier collaborator
type AIConfig struct {
	GeminiKey   string
	GeminiModel string
	BaseURL     string
	Timeout     time.Duration
	Enabled     bool
}

// PhysicsConfig holds settings for the reference-discharge twin collaborator
type PhysicsConfig struct {
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds analysis history storage settings. Optional: an empty
// URL disables history persistence entirely.
type DatabaseConfig struct {
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		AI:       loadAIConfig(),
		Physics:  loadPhysicsConfig(),
		Server:   loadServerConfig(),
		Database: DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAIConfig() AIConfig {
	key := os.Getenv("GEMINI_API_KEY")
	return AIConfig{
		GeminiKey:   key,
		GeminiModel: getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		BaseURL:     getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		Timeout:     time.Duration(getEnvIntOrDefault("GEMINI_TIMEOUT_MS", 12000)) * time.Millisecond,
		Enabled:     key != "" && getEnvBoolOrDefault("GEMINI_ENABLED", true),
	}
}

func loadPhysicsConfig() PhysicsConfig {
	url := getEnvOrDefault("PHYSICS_TWIN_URL", "")
	return PhysicsConfig{
		BaseURL: url,
		Timeout: time.Duration(getEnvIntOrDefault("PHYSICS_TIMEOUT_MS", 30000)) * time.Millisecond,
		Enabled: url != "" && getEnvBoolOrDefault("PHYSICS_ENABLED", true),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.AI.Enabled && config.AI.GeminiKey == "" {
		return errors.ConfigInvalid("GEMINI_API_KEY is required when the classifier is enabled")
	}
	if config.AI.Timeout <= 0 {
		return errors.ConfigInvalid("classifier timeout must be positive")
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
