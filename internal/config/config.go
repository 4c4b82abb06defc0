// Package config loads service configuration from defaults, an optional .env
// file, and KINDRED_* environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Oracle  OracleConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// APIToken guards the management routes when set; empty disables auth.
	APIToken string
}

type OracleConfig struct {
	// APIKey may be empty: oracle calls then fail and every consumer falls
	// back to its deterministic content.
	APIKey string
	Model  string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level slog.Level
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4000},
		Oracle:  OracleConfig{Model: "claude-haiku-4-5"},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: slog.LevelInfo},
	}
}

// Load reads configuration. A .env file in the working directory is applied
// to the environment first when present; KINDRED_* variables then override
// the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	cfg := defaults()

	if raw := os.Getenv("KINDRED_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing KINDRED_PORT=%q: %w", raw, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("KINDRED_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}
	if v := os.Getenv("KINDRED_ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("KINDRED_ORACLE_MODEL"); v != "" {
		cfg.Oracle.Model = v
	}
	if v := os.Getenv("KINDRED_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if raw := os.Getenv("KINDRED_LOG_LEVEL"); raw != "" {
		level, err := parseLevel(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Log.Level = level
	}

	return cfg, nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", raw)
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "kindred-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "kindred")
}
