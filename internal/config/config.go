// Package config loads control-plane settings from the environment and the
// origin-map file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects every runtime setting of the control plane.
type Config struct {
	ListenAddr      string
	LogLevel        string
	LogFormat       string
	OriginMapPath   string
	WatchOriginMap  bool
	ShutdownTimeout time.Duration

	JournalDSN      string
	JournalCapacity int

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

const (
	defaultListenAddr      = ":8080"
	defaultShutdownTimeout = 10 * time.Second
	defaultJournalCapacity = 512
)

// Load reads configuration from STREAMGATE_* environment variables, applying
// defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      firstNonEmpty(envString("STREAMGATE_ADDR"), defaultListenAddr),
		LogLevel:        envString("STREAMGATE_LOG_LEVEL"),
		LogFormat:       envString("STREAMGATE_LOG_FORMAT"),
		OriginMapPath:   envString("STREAMGATE_ORIGIN_MAP"),
		ShutdownTimeout: defaultShutdownTimeout,
		JournalDSN:      envString("STREAMGATE_POSTGRES_DSN"),
		JournalCapacity: defaultJournalCapacity,
		RedisAddr:       envString("STREAMGATE_REDIS_ADDR"),
		RedisUsername:   envString("STREAMGATE_REDIS_USERNAME"),
		RedisPassword:   os.Getenv("STREAMGATE_REDIS_PASSWORD"),
		RedisKey:        envString("STREAMGATE_REDIS_KEY"),
	}

	watch, err := envBool("STREAMGATE_WATCH_ORIGIN_MAP", true)
	if err != nil {
		return Config{}, err
	}
	cfg.WatchOriginMap = watch

	if raw := envString("STREAMGATE_SHUTDOWN_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse STREAMGATE_SHUTDOWN_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("STREAMGATE_SHUTDOWN_TIMEOUT must be positive")
		}
		cfg.ShutdownTimeout = timeout
	}

	capacity, err := envInt("STREAMGATE_JOURNAL_CAPACITY", defaultJournalCapacity)
	if err != nil {
		return Config{}, err
	}
	if capacity <= 0 {
		return Config{}, fmt.Errorf("STREAMGATE_JOURNAL_CAPACITY must be positive")
	}
	cfg.JournalCapacity = capacity

	db, err := envInt("STREAMGATE_REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB = db

	return cfg, nil
}

func envString(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func envInt(name string, fallback int) (int, error) {
	raw := envString(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func envBool(name string, fallback bool) (bool, error) {
	raw := envString(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
