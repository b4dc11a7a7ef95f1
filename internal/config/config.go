// Package config loads the ingest command's settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	DBDriver string
	DBDSN    string

	UsersTable  string
	IDColumn    string
	EmailColumn string

	Timeout  time.Duration
	LogLevel slog.Level

	RedisAddr string
}

// Load reads the configuration. Unset or malformed values fall back to
// the defaults.
func Load() Config {
	return Config{
		DBDriver:    strings.ToLower(getEnvString("DB_DRIVER", DriverSQLite)),
		DBDSN:       getEnvString("DB_DSN", "webmail.db"),
		UsersTable:  getEnvString("USERS_TABLE", "users"),
		IDColumn:    getEnvString("USERS_ID_COLUMN", "id"),
		EmailColumn: getEnvString("USERS_EMAIL_COLUMN", "email"),
		Timeout:     getEnvDuration("INGEST_TIMEOUT", 30*time.Second),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		RedisAddr:   getEnvString("REDIS_ADDR", ""),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if d, err := time.ParseDuration(trimmed); err == nil && d > 0 {
			return d
		}
		// Bare numbers are seconds.
		if n, err := strconv.Atoi(trimmed); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err == nil {
			return level
		}
	}
	return fallback
}
