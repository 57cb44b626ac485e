// Package config loads storefront settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Mirror backends.
const (
	MirrorMemory = "memory"
	MirrorSQLite = "sqlite"
	MirrorRedis  = "redis"
)

type Config struct {
	ServiceName        string
	Environment        string
	HTTPPort           string
	APIBaseURL         string
	RequestTimeout     time.Duration
	RemoteTimeout      time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	BreakerFailures    uint32
	BreakerCooldown    time.Duration

	MirrorBackend   string
	MirrorPath      string
	MirrorNamespace string
	MirrorTTL       time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	LogLevel     string
	OTLPEndpoint string
}

// Load reads .env (when present) and the environment. The returned bool
// reports whether a .env file was loaded.
func Load(files ...string) (*Config, bool, error) {
	loaded := godotenv.Load(files...) == nil

	cfg := &Config{
		ServiceName:        getEnv("SERVICE_NAME", "storefront"),
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIBaseURL:         getEnv("STOREFRONT_API_URL", "http://localhost:8081"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		RemoteTimeout:      getDuration("REMOTE_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(getInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		BreakerFailures:    uint32(getInt("BREAKER_FAILURES", 5)),
		BreakerCooldown:    getDuration("BREAKER_COOLDOWN", 30*time.Second),

		MirrorBackend:   getEnv("MIRROR_BACKEND", MirrorSQLite),
		MirrorPath:      getEnv("MIRROR_PATH", "./data/mirror.db"),
		MirrorNamespace: getEnv("MIRROR_NAMESPACE", ""),
		MirrorTTL:       getDuration("MIRROR_TTL", 0),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getInt("REDIS_DB", 0),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, loaded, err
	}
	return cfg, loaded, nil
}

func (c *Config) Validate() error {
	switch c.MirrorBackend {
	case MirrorMemory, MirrorRedis:
	case MirrorSQLite:
		if c.MirrorPath == "" {
			return fmt.Errorf("MIRROR_PATH is required for the sqlite mirror")
		}
	default:
		return fmt.Errorf("unknown MIRROR_BACKEND %q", c.MirrorBackend)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("STOREFRONT_API_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d >= 0 {
		return d
	}
	return defaultValue
}
