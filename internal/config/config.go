// Package config loads the StakTrakr configuration from YAML, environment
// variables, and a local .env fallback for the API credential.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// placeholderKey is the sample value shipped in .env.example; it is treated
// as unset.
const placeholderKey = "your_api_key_here"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the spot-price archiver.
type Config struct {
	API     API     `yaml:"api"`
	Storage Storage `yaml:"storage"`
	Poll    Poll    `yaml:"poll"`
	Logging Logging `yaml:"logging"`
}

// API holds the rates source endpoint, credential, and request limits.
type API struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	// ChunkDays is the maximum span of one timeframe request.
	ChunkDays int `yaml:"chunk_days"`
}

// Storage holds the data directory the three archive layers live under.
type Storage struct {
	DataDir string `yaml:"data_dir"`
}

// Poll controls the live poll cycle.
type Poll struct {
	// Cron is the poll schedule (robfig/cron spec with a seconds field).
	Cron string `yaml:"cron"`
	// NoonHourUTC is the UTC hour from which the daily seed write runs.
	// Noon in the reference market expressed as a fixed UTC offset.
	// Zero means unset and takes the default; a midnight threshold is not
	// expressible.
	NoonHourUTC int `yaml:"noon_hour_utc"`
	// BackfillHours is the trailing window healed in single-shot mode.
	// Zero means unset and takes the default.
	BackfillHours int `yaml:"backfill_hours"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration at path (a missing file is tolerated,
// defaults apply), applies environment variable overrides, and falls back
// to a .env file next to the config file for the API key.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	// .env fallback for local use, the env var wins when both are set.
	if unusableKey(cfg.API.Key) {
		envPath := filepath.Join(filepath.Dir(path), ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("load %s: %w", envPath, err)
			}
			if v := os.Getenv("METAL_PRICE_API_KEY"); v != "" {
				cfg.API.Key = v
			}
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("METAL_PRICE_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("METAL_PRICE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("POLL_CRON"); v != "" {
		cfg.Poll.Cron = v
	}
	if v := os.Getenv("NOON_HOUR_UTC"); v != "" {
		if h, err := strconv.Atoi(v); err == nil {
			cfg.Poll.NoonHourUTC = h
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.metalpriceapi.com/v1"
	}
	if cfg.API.ChunkDays == 0 {
		cfg.API.ChunkDays = 365
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Poll.Cron == "" {
		cfg.Poll.Cron = "@every 1h"
	}
	if cfg.Poll.NoonHourUTC == 0 {
		cfg.Poll.NoonHourUTC = 17 // noon EST
	}
	if cfg.Poll.BackfillHours == 0 {
		cfg.Poll.BackfillHours = 24
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks that a usable credential and storage location are
// configured. It runs before any network or file activity.
func (c *Config) Validate() error {
	if unusableKey(c.API.Key) {
		return fmt.Errorf("api.key is required: set METAL_PRICE_API_KEY or add it to .env")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.API.ChunkDays <= 0 {
		return fmt.Errorf("api.chunk_days must be positive")
	}
	return nil
}

func unusableKey(key string) bool {
	return key == "" || key == placeholderKey
}
