package cli

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the CLI settings. Flags override the environment.
type Config struct {
	// API is the merchant API base URL.
	API string
	// StateDir holds the durable session database and the per-shell
	// session files.
	StateDir string

	LogLevel  string
	LogFormat string

	// Timeout bounds each HTTP call made by the SDK.
	Timeout time.Duration
}

// LoadConfig reads PORTAL_* variables with local development defaults.
func LoadConfig() Config {
	return Config{
		API:       getEnvOrDefault("PORTAL_API", "http://localhost:8080"),
		StateDir:  getEnvOrDefault("PORTAL_STATE_DIR", defaultStateDir()),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
		Timeout:   getEnvDurationOrDefault("PORTAL_TIMEOUT", 15*time.Second),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "portal")
	}
	return ".portal"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
