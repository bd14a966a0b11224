package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds everything the client core reads from the environment.
// Only the public (row-level-security scoped) key belongs here; privileged
// keys are reserved for maintenance scripts outside this module.
type Config struct {
	BaseURL  string // backend base URL, e.g. https://xyz.storefront.host
	AnonKey  string // public API key, scoped by row-level security
	CartDir  string // directory for the local guest cart store
	LogLevel slog.Level
}

// Load reads configuration from the environment, loading a .env file first
// if one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BaseURL: os.Getenv("STOREFRONT_BASE_URL"),
		AnonKey: os.Getenv("STOREFRONT_ANON_KEY"),
		CartDir: os.Getenv("STOREFRONT_CART_DIR"),
	}

	if cfg.BaseURL == "" {
		return Config{}, errors.New("STOREFRONT_BASE_URL is required")
	}
	if cfg.AnonKey == "" {
		return Config{}, errors.New("STOREFRONT_ANON_KEY is required")
	}
	if cfg.CartDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		cfg.CartDir = filepath.Join(home, ".storefront", "cart")
	}

	switch os.Getenv("STOREFRONT_LOG_LEVEL") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	return cfg, nil
}
