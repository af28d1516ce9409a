// Package config loads server configuration from the environment and
// review profiles from YAML files.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// StoreBackend selects the decision/clause store: memory, sqlite or
	// postgres.
	StoreBackend string
	SQLitePath   string
	DatabaseURL  string

	// RedisAddr enables the shared projection cache when non-empty;
	// otherwise the in-process cache is used.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// JWTSecret signs review API tokens. Empty means auth fails closed.
	JWTSecret string

	RateLimitRPS   float64
	RateLimitBurst int

	// OTLPEndpoint enables OpenTelemetry export when non-empty.
	OTLPEndpoint string

	// ProfilesDir holds review profile YAML files; ProfileCode selects
	// the active one. Empty ProfileCode runs with built-in defaults.
	ProfilesDir string
	ProfileCode string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           envOr("PORT", "8080"),
		LogLevel:       envOr("LOG_LEVEL", "INFO"),
		StoreBackend:   envOr("STORE_BACKEND", "memory"),
		SQLitePath:     envOr("SQLITE_PATH", "redline.db"),
		DatabaseURL:    envOr("DATABASE_URL", "postgres://redline@localhost:5432/redline?sslmode=disable"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		CacheTTL:       time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 40),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ProfilesDir:    envOr("PROFILES_DIR", "profiles"),
		ProfileCode:    os.Getenv("REVIEW_PROFILE"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
