// Package config loads docql settings from the environment.
//
// Precedence, highest first:
//  1. Variables already set in the process environment
//  2. Values from the .env file, if one exists
//  3. Defaults
//
// CLI flags override the loaded Config; that happens in internal/cli.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDBPath       = "DOCQL_DB_PATH"
	EnvDriver       = "DOCQL_DRIVER"
	EnvBusyTimeout  = "DOCQL_BUSY_TIMEOUT"
	EnvLogLevel     = "DOCQL_LOG_LEVEL"
	EnvBatchWorkers = "DOCQL_BATCH_WORKERS"
)

// DefaultEnvFile is read by Load when no file is named.
const DefaultEnvFile = ".env"

// Config holds process-wide settings.
type Config struct {
	// DBPath is the SQLite database used by "docql find".
	DBPath string
	// Driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
	Driver      string
	BusyTimeout time.Duration
	LogLevel    slog.Level
	// BatchWorkers bounds the pool compiling query files concurrently.
	BatchWorkers int
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:       "docql.db",
		Driver:       "sqlite3",
		BusyTimeout:  5 * time.Second,
		LogLevel:     slog.LevelWarn,
		BatchWorkers: runtime.GOMAXPROCS(0),
	}
}

// Load reads envFile (DefaultEnvFile when empty) into the process
// environment without overriding variables that are already set, then
// builds a Config. A missing file is not an error; a malformed value is.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.DBPath = getEnvOrDefault(EnvDBPath, cfg.DBPath)
	cfg.Driver = getEnvOrDefault(EnvDriver, cfg.Driver)

	var err error
	if cfg.BusyTimeout, err = getEnvAsDuration(EnvBusyTimeout, cfg.BusyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BatchWorkers, err = getEnvAsInt(EnvBatchWorkers, cfg.BatchWorkers); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		if cfg.LogLevel, err = ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	switch c.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unknown driver %q (want sqlite3 or sqlite)", c.Driver)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("negative busy timeout %s", c.BusyTimeout)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be at least 1, got %d", c.BatchWorkers)
	}
	return nil
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
