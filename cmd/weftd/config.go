package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all weftd configuration.
// Priority: env vars > settings.json > defaults. A .env file in the
// working directory is loaded first so env overrides still win locally.
type Config struct {
	DBPath         string `json:"db_path"`
	Listen         string `json:"listen"`
	LogLevel       string `json:"log_level"`
	PoolSize       int    `json:"pool_size"`
	MaxUnitsPerRun int    `json:"max_units_per_run"`
	HTTPTimeout    string `json:"http_timeout"`
	Scheduler      bool   `json:"scheduler"`
	MasterKey      string `json:"-"` // env-only, never persisted
	Passphrase     string `json:"-"`
	PassphraseSalt string `json:"-"`
}

func defaultConfig() Config {
	return Config{
		DBPath:         filepath.Join(weftDir(), "weft.db"),
		Listen:         "127.0.0.1:8077",
		LogLevel:       "info",
		PoolSize:       4,
		MaxUnitsPerRun: 10_000,
		HTTPTimeout:    "30s",
		Scheduler:      true,
	}
}

func weftDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weft"
	}
	return filepath.Join(home, ".weft")
}

func settingsPath() string {
	return filepath.Join(weftDir(), "settings.json")
}

func loadConfig() Config {
	// Layer 0: .env in cwd (ignore if missing).
	_ = godotenv.Load()

	cfg := defaultConfig()

	// Layer 1: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 2: env vars override.
	if v := os.Getenv("WEFT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WEFT_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("WEFT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WEFT_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("WEFT_MAX_UNITS_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxUnitsPerRun = n
		}
	}
	if v := os.Getenv("WEFT_HTTP_TIMEOUT"); v != "" {
		cfg.HTTPTimeout = v
	}
	if v := os.Getenv("WEFT_SCHEDULER"); v != "" {
		cfg.Scheduler = v == "true" || v == "1"
	}
	cfg.MasterKey = os.Getenv("WEFT_MASTER_KEY")
	cfg.Passphrase = os.Getenv("WEFT_PASSPHRASE")
	cfg.PassphraseSalt = os.Getenv("WEFT_PASSPHRASE_SALT")

	return cfg
}

// httpTimeout parses the configured timeout, falling back to 30s.
func (c Config) httpTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
