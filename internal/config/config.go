// Package config provides configuration for the assistant client.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client configuration.
type Config struct {
	// Remote backend
	BackendURL     string
	APIToken       string
	RequestTimeout time.Duration

	// Local cache
	CachePath string

	// Completion settings
	Model       string
	Temperature float64
	MaxTokens   int
	UseContext  bool

	// Logging
	LogLevel string
}

// Load loads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000"),
		APIToken:       getEnv("API_TOKEN", ""),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT_MS", 30*time.Second),
		CachePath:      getEnv("CACHE_PATH", "assistant-cache.db"),
		Model:          getEnv("CHAT_MODEL", "default"),
		Temperature:    getEnvFloat("CHAT_TEMPERATURE", 0.7),
		MaxTokens:      getEnvInt("CHAT_MAX_TOKENS", 2048),
		UseContext:     getEnvBool("CHAT_USE_CONTEXT", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
