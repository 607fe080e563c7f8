// Package config loads runtime settings from the environment. Every
// setting has a default so a bare invocation just works.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// envPrefix namespaces all settings.
const envPrefix = "CHUNKDEX_"

// Config holds all runtime settings.
type Config struct {
	// DBPath is the task database location.
	DBPath string
	// LogPath is the log file location. Empty disables file logging.
	LogPath string
	// LogLevel is debug, info, warn or error.
	LogLevel slog.Level
	// DebounceDelay is the file-watch settle time before re-analysis.
	DebounceDelay time.Duration
	// MaxChunkSize bounds chunk content returned over the wire.
	MaxChunkSize int
	// FilesPerWorker controls analysis batch parallelism.
	FilesPerWorker int
}

// Load reads settings from CHUNKDEX_* environment variables, filling in
// defaults for anything unset. Malformed values are errors, not silent
// fallbacks.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	stateDir := filepath.Join(home, ".chunkdex")

	cfg := &Config{
		DBPath:         filepath.Join(stateDir, "tasks.db"),
		LogPath:        filepath.Join(stateDir, "chunkdex.log"),
		LogLevel:       slog.LevelInfo,
		DebounceDelay:  500 * time.Millisecond,
		MaxChunkSize:   10000,
		FilesPerWorker: 10,
	}

	if v := os.Getenv(envPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v, set := os.LookupEnv(envPrefix + "LOG_PATH"); set {
		cfg.LogPath = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv(envPrefix + "DEBOUNCE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%sDEBOUNCE_DELAY: %w", envPrefix, err)
		}
		cfg.DebounceDelay = d
	}
	if v := os.Getenv(envPrefix + "MAX_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%sMAX_CHUNK_SIZE: must be a positive integer, got %q", envPrefix, v)
		}
		cfg.MaxChunkSize = n
	}
	if v := os.Getenv(envPrefix + "FILES_PER_WORKER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%sFILES_PER_WORKER: must be a positive integer, got %q", envPrefix, v)
		}
		cfg.FilesPerWorker = n
	}
	return cfg, nil
}
