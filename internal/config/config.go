// Package config provides configuration management for reverie.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Defaults for analysis and worker behavior.
const (
	DefaultModel              = "gpt-5-mini"
	DefaultWorkerPort         = 39412
	DefaultHistoryWindow      = 10
	DefaultTruncateAt         = 450
	DefaultRequestTimeoutSecs = 120
	DefaultMaxOutputTokens    = 4000
	DefaultStoreBackend       = "file"
	DefaultMaxConns           = 4
)

// EnvAPIKey names the required credential for the model boundary.
const EnvAPIKey = "OPENAI_API_KEY"

// Config holds runtime configuration loaded from settings.json with
// environment overrides. The API key is env-only and never written to disk.
type Config struct {
	Model              string
	WorkerPort         int
	HistoryWindow      int
	TruncateAt         int
	RequestTimeoutSecs int
	MaxOutputTokens    int
	StoreBackend       string
	MaxConns           int
	APIKey             string
}

// settings is the on-disk shape of settings.json. Keys mirror the env
// variable names so one name works in both places.
type settings struct {
	Model              string `json:"REVERIE_MODEL"`
	WorkerPort         int    `json:"REVERIE_WORKER_PORT"`
	HistoryWindow      int    `json:"REVERIE_HISTORY_WINDOW"`
	TruncateAt         int    `json:"REVERIE_TRUNCATE_AT"`
	RequestTimeoutSecs int    `json:"REVERIE_REQUEST_TIMEOUT_SECS"`
	MaxOutputTokens    int    `json:"REVERIE_MAX_OUTPUT_TOKENS"`
	StoreBackend       string `json:"REVERIE_STORE"`
	MaxConns           int    `json:"REVERIE_MAX_CONNS"`
}

var (
	cached     *Config
	cachedOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Model:              DefaultModel,
		WorkerPort:         DefaultWorkerPort,
		HistoryWindow:      DefaultHistoryWindow,
		TruncateAt:         DefaultTruncateAt,
		RequestTimeoutSecs: DefaultRequestTimeoutSecs,
		MaxOutputTokens:    DefaultMaxOutputTokens,
		StoreBackend:       DefaultStoreBackend,
		MaxConns:           DefaultMaxConns,
		APIKey:             os.Getenv(EnvAPIKey),
	}
}

// DataDir returns the reverie data directory (~/.reverie by default,
// REVERIE_DATA_DIR overrides).
func DataDir() string {
	if dir := os.Getenv("REVERIE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".reverie")
}

// StatePath returns the path of the journal state blob (file backend).
func StatePath() string {
	return filepath.Join(DataDir(), "journal.json")
}

// DBPath returns the SQLite database path (sqlite backend).
func DBPath() string {
	return filepath.Join(DataDir(), "reverie.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings creates a default settings file if missing.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	defaults := settings{
		Model:              DefaultModel,
		WorkerPort:         DefaultWorkerPort,
		HistoryWindow:      DefaultHistoryWindow,
		TruncateAt:         DefaultTruncateAt,
		RequestTimeoutSecs: DefaultRequestTimeoutSecs,
		MaxOutputTokens:    DefaultMaxOutputTokens,
		StoreBackend:       DefaultStoreBackend,
		MaxConns:           DefaultMaxConns,
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll initializes the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json over the defaults and applies environment
// overrides. An unreadable or invalid settings file yields defaults.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var s settings
		if err := json.Unmarshal(data, &s); err == nil {
			if s.Model != "" {
				cfg.Model = s.Model
			}
			if s.WorkerPort > 0 {
				cfg.WorkerPort = s.WorkerPort
			}
			if s.HistoryWindow > 0 {
				cfg.HistoryWindow = s.HistoryWindow
			}
			if s.TruncateAt > 0 {
				cfg.TruncateAt = s.TruncateAt
			}
			if s.RequestTimeoutSecs > 0 {
				cfg.RequestTimeoutSecs = s.RequestTimeoutSecs
			}
			if s.MaxOutputTokens > 0 {
				cfg.MaxOutputTokens = s.MaxOutputTokens
			}
			if s.StoreBackend != "" {
				cfg.StoreBackend = s.StoreBackend
			}
			if s.MaxConns > 0 {
				cfg.MaxConns = s.MaxConns
			}
		}
	}

	if v := os.Getenv("REVERIE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := envInt("REVERIE_WORKER_PORT"); v > 0 {
		cfg.WorkerPort = v
	}
	if v := envInt("REVERIE_HISTORY_WINDOW"); v > 0 {
		cfg.HistoryWindow = v
	}
	if v := envInt("REVERIE_TRUNCATE_AT"); v > 0 {
		cfg.TruncateAt = v
	}
	if v := envInt("REVERIE_REQUEST_TIMEOUT_SECS"); v > 0 {
		cfg.RequestTimeoutSecs = v
	}
	if v := envInt("REVERIE_MAX_OUTPUT_TOKENS"); v > 0 {
		cfg.MaxOutputTokens = v
	}
	if v := os.Getenv("REVERIE_STORE"); v != "" {
		cfg.StoreBackend = v
	}
	if v := envInt("REVERIE_MAX_CONNS"); v > 0 {
		cfg.MaxConns = v
	}

	return cfg, nil
}

// Get returns the process-wide configuration, loading it once.
func Get() *Config {
	cachedOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		cached = cfg
	})
	return cached
}

// envInt parses an integer environment variable, 0 if unset or invalid.
func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
