// Package config loads service settings from the environment, with
// defaults that make a local `go run . -command start` work without setup.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the todo service.
type Config struct {
	// Server
	Port string

	// Database
	DBDriver      string
	DBDSN         string
	MigrationsDir string

	// Cache ("redis" in deployments, "memory" works for local runs and tests)
	CacheType     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads .env (if present) and then the environment.
func Load() *Config {
	// Missing .env is fine; env vars still apply
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBDriver: getEnv("DB_DRIVER", "sqlite3"),
		// _foreign_keys turns on FK enforcement so the ON DELETE CASCADE
		// clauses in the schema actually apply
		DBDSN:         getEnv("DB_DSN", "./todo_service.db?_foreign_keys=on"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./database/migrations"),

		CacheType:     getEnv("CACHE_TYPE", "redis"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// getEnv returns the env var value, or the default when unset.
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt returns the env var parsed as int, or the default.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
