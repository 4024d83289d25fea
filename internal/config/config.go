// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                string
	DatabasePath        string
	JWTSecret           string
	SpotifyClientID     string
	SpotifyClientSecret string
	HostTokenDuration   time.Duration
	MemberTokenDuration time.Duration
	RateLimitPerMinute  int
	CORSAllowedOrigins  []string
	TrustedProxies      []string
	SentryDSN           string
	SentryEnvironment   string
	StoreRetryDelay     time.Duration
	SubscriberBuffer    int
	SSEHeartbeat        time.Duration
	PollInterval        time.Duration
}

// Load reads configuration from environment variables, using defaults where not set.
// Variables from a .env file in the working directory are loaded first; real
// environment variables win over the file.
func Load() *Config {
	loadDotEnv(".env")

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "./queueit.db"),
		JWTSecret:           getEnv("JWT_SECRET", "change-me-in-production"), // #nosec G101 -- intentional dev default
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		HostTokenDuration:   getDurationEnv("HOST_TOKEN_DURATION", 7*24*time.Hour),
		MemberTokenDuration: getDurationEnv("MEMBER_TOKEN_DURATION", 12*time.Hour),
		RateLimitPerMinute:  getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:  getStringSliceEnvDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		TrustedProxies:      getStringSliceEnv("TRUSTED_PROXIES"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		SentryEnvironment:   getEnv("SENTRY_ENVIRONMENT", "production"),
		StoreRetryDelay:     getDurationEnv("STORE_RETRY_DELAY", time.Second),
		SubscriberBuffer:    getIntEnv("SUBSCRIBER_BUFFER", 32),
		SSEHeartbeat:        getDurationEnv("SSE_HEARTBEAT", 30*time.Second),
		PollInterval:        getDurationEnv("POLL_INTERVAL", 5*time.Second),
	}
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.String("path", path), slog.Any("error", err))
	}
}

func getStringSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getStringSliceEnvDefault(key string, defaultValue []string) []string {
	if v := getStringSliceEnv(key); len(v) > 0 {
		return v
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
