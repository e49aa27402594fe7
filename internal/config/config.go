// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/vocabtable/vocabtable/internal/db"
)

// Config holds all configuration values shared by the CLI and web binaries.
type Config struct {
	// Store selects the storage backend: sqlite, redis or memory.
	Store string

	// DatabasePath is the SQLite file. Defaults to "vocabtable.db".
	DatabasePath string

	// RedisAddr and RedisDB locate the Redis server when Store is redis.
	RedisAddr string
	RedisDB   int

	// StorageKey names the record holding the vocabulary list.
	StorageKey string

	// PersistDeletes makes deletions reach storage. Defaults to false.
	PersistDeletes bool

	// BindAddr and Port are where the web binary listens.
	BindAddr string
	Port     string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFile is where the CLI writes logs. Empty disables CLI logging.
	LogFile string

	// AnthropicAPIKey enables document import when set.
	AnthropicAPIKey string

	// Language is passed to the extractor. Defaults to "auto-detect".
	Language string
}

// Load reads configuration from environment variables and returns a Config.
// Every invalid value is reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		Store:           getEnv("STORE", db.BackendSQLite),
		DatabasePath:    getEnv("DATABASE_PATH", "vocabtable.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		StorageKey:      getEnv("STORAGE_KEY", db.DefaultKey),
		BindAddr:        getEnv("BIND_ADDR", "127.0.0.1"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:         os.Getenv("LOG_FILE"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Language:        getEnv("LANGUAGE", "auto-detect"),
	}

	var problems []string

	switch cfg.Store {
	case db.BackendSQLite, db.BackendRedis, db.BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE must be sqlite, redis or memory, got %q", cfg.Store))
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		problems = append(problems, fmt.Sprintf("REDIS_DB must be a non-negative integer, got %q", os.Getenv("REDIS_DB")))
	}
	cfg.RedisDB = redisDB

	persist, err := strconv.ParseBool(getEnv("PERSIST_DELETES", "false"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("PERSIST_DELETES must be a boolean, got %q", os.Getenv("PERSIST_DELETES")))
	}
	cfg.PersistDeletes = persist

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL: %v", err))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// StoreOptions maps the configuration onto db.Open options.
func (c Config) StoreOptions() db.Options {
	return db.Options{
		Backend:   c.Store,
		Path:      c.DatabasePath,
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		Key:       c.StorageKey,
	}
}

// ListenAddr is the host:port the web server binds.
func (c Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
