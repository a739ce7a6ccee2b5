package app

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
)

type Config struct {
	Issuer        string        // Optional: issuer claim for tokens (default: portal-sandbox)
	PepperFile    string        // Optional: file holding the password pepper
	RequireStepUp bool          // Ask untrusted devices for an email code at login (default: true)
	SecureCookies bool          // Mark auth cookies Secure (default: false, the sandbox runs on http)
	AccessTTL     time.Duration // Access token lifetime (default: 1h)
	RefreshTTL    time.Duration // vp_refresh lifetime (default: 30 days)
	TrustTTL      time.Duration // vp_trust lifetime (default: 30 days)
	ChallengeTTL  time.Duration // 2FA challenge lifetime (default: 10m)
	FeeRate       string        // Withdrawal fee as a decimal fraction (default: 0.02)
	ResetURL      string        // Page that reset links point to
	SeedEmail     string        // Optional: admin account created at startup
	SeedPassword  string        // Optional: password for SeedEmail

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 10m)

	// Not loaded from env. Tests inject these.
	Logger        *slog.Logger
	Mailer        service.Mailer
	Now           func() time.Time
	LoginLimit    *httpx.RateLimitConfig
	ResourceLimit *httpx.RateLimitConfig
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("SANDBOX_ISSUER", "portal-sandbox"),
		PepperFile:    os.Getenv("SANDBOX_PEPPER_FILE"),
		RequireStepUp: getEnvBoolOrDefault("SANDBOX_REQUIRE_2FA", true),
		SecureCookies: getEnvBoolOrDefault("SANDBOX_SECURE_COOKIES", false),
		AccessTTL:     getEnvDurationOrDefault("SANDBOX_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:    getEnvDurationOrDefault("SANDBOX_REFRESH_TTL", 30*24*time.Hour),
		TrustTTL:      getEnvDurationOrDefault("SANDBOX_TRUST_TTL", 30*24*time.Hour),
		ChallengeTTL:  getEnvDurationOrDefault("SANDBOX_CHALLENGE_TTL", 10*time.Minute),
		FeeRate:       getEnvOrDefault("SANDBOX_FEE_RATE", "0.02"),
		ResetURL:      getEnvOrDefault("SANDBOX_RESET_URL", "http://localhost:5173/auth/reset?token="),
		SeedEmail:     os.Getenv("SANDBOX_SEED_EMAIL"),
		SeedPassword:  os.Getenv("SANDBOX_SEED_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 10*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
