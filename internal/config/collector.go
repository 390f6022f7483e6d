package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/store"
)

// CollectorConfig holds all configuration for the collector service.
type CollectorConfig struct {
	HTTPPort string
	GRPCPort string

	PresenceWindow       time.Duration
	PresenceMaxEndpoints int

	Store store.Options

	// Empty disables the event bus
	NatsURL string

	SubscriberBuffer int
	HistoryLimit     int
	ReportsLimit     int

	LogLevel  string
	LogFormat string

	// EnvFile is the .env file that was loaded, if any
	EnvFile string
}

// LoadCollector reads configuration from a .env file and the environment.
func LoadCollector() (*CollectorConfig, error) {
	envFile := loadDotEnv()

	cfg := &CollectorConfig{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8082"),
		GRPCPort: getEnvOrDefault("GRPC_PORT", "50054"),

		PresenceWindow:       parseDurationOrDefault("PRESENCE_WINDOW", 30*time.Second),
		PresenceMaxEndpoints: parseIntOrDefault("PRESENCE_MAX_ENDPOINTS", 0),

		Store: store.Options{
			Backend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", "file")),
			FilePath:        getEnvOrDefault("DATA_PATH", store.DefaultFilePath),
			MongoURI:        getEnvOrDefault("MONGO_URI", store.DefaultMongoURI),
			MongoDatabase:   getEnvOrDefault("MONGO_DB", store.DefaultMongoDatabase),
			MongoCollection: getEnvOrDefault("MONGO_COLLECTION", store.DefaultMongoCollection),
			RedisAddr:       getEnvOrDefault("REDIS_ADDR", store.DefaultRedisAddr),
			RedisPassword:   getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:         parseIntOrDefault("REDIS_DB", 0),
			RedisPrefix:     getEnvOrDefault("REDIS_PREFIX", store.DefaultRedisPrefix),
			PostgresURL:     getEnvOrDefault("POSTGRES_URL", ""),
			MySQLDSN:        getEnvOrDefault("MYSQL_DSN", ""),
		},

		NatsURL: getEnvOrDefault("NATS_URL", ""),

		SubscriberBuffer: parseIntOrDefault("SUBSCRIBER_BUFFER", 16),
		HistoryLimit:     parseIntOrDefault("HISTORY_LIMIT", 100),
		ReportsLimit:     parseIntOrDefault("REPORTS_LIMIT", 1000),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		EnvFile: envFile,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and in range.
func (c *CollectorConfig) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.GRPCPort == "" {
		return fmt.Errorf("GRPC_PORT is required")
	}
	if c.PresenceWindow <= 0 {
		return fmt.Errorf("PRESENCE_WINDOW must be positive")
	}
	if c.PresenceMaxEndpoints < 0 {
		return fmt.Errorf("PRESENCE_MAX_ENDPOINTS must not be negative")
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("SUBSCRIBER_BUFFER must be at least 1")
	}
	if c.HistoryLimit < 0 || c.ReportsLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT and REPORTS_LIMIT must not be negative")
	}

	switch c.Store.Backend {
	case "memory", "mongo", "redis":
	case "file":
		if c.Store.FilePath == "" {
			return fmt.Errorf("DATA_PATH is required for the file backend")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres backend")
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for the mysql backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of memory, file, mongo, redis, postgres, mysql", c.Store.Backend)
	}

	return nil
}
