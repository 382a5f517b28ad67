package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Logging     LoggingConfig `toml:"logging"`
	Storage     StorageConfig `toml:"storage"`
	Jobs        JobsConfig    `toml:"jobs"`
	Maps        MapsConfig    `toml:"maps"`
	Enrich      EnrichConfig  `toml:"enrich"`
	Claude      ClaudeConfig  `toml:"claude"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig configures the durable job/lead mirror. When Enabled is
// false the service runs in-memory only: no resume, no cross-restart
// recovery, no cross-job dedup.
type SQLiteConfig struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	WALMode       bool   `toml:"wal_mode"`
}

// BadgerConfig configures the key-value cache (research results,
// website fetch cache).
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// JobsConfig controls admission, sweeping, and streaming behavior.
type JobsConfig struct {
	MaxConcurrent   int    `toml:"max_concurrent" validate:"min=1"`  // global pending+running ceiling
	MaxPerUser      int    `toml:"max_per_user" validate:"min=1"`    // per-user pending+running ceiling
	TimeoutMinutes  int    `toml:"timeout_minutes" validate:"min=1"` // running jobs older than this are force-failed
	TTLMinutes      int    `toml:"ttl_minutes" validate:"min=1"`     // terminal jobs dropped from memory after this
	CleanupSchedule string `toml:"cleanup_schedule"`                 // cron spec for the sweep loop
	EventBufferSize int    `toml:"event_buffer_size" validate:"min=1"`
	WorkerCount     int    `toml:"worker_count" validate:"min=1"` // pipeline worker pool size
}

// MapsConfig contains Google Maps search configuration.
type MapsConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	RequestTimeout string  `toml:"request_timeout"`
}

// EnrichConfig controls website enrichment behavior.
type EnrichConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	UseBrowser     bool   `toml:"use_browser"` // render JS-only pages with chromedp
	BrowserWait    string `toml:"browser_wait"`
}

// ClaudeConfig contains Anthropic Claude API configuration.
type ClaudeConfig struct {
	APIKey        string  `toml:"api_key"`
	Model         string  `toml:"model"`
	MaxTokens     int     `toml:"max_tokens"`
	Timeout       string  `toml:"timeout"`
	Temperature   float32 `toml:"temperature"`
	ResearchRPM   int     `toml:"research_rpm"`   // rate limit for on-demand lead research
	SkipOnMissing bool    `toml:"skip_on_missing"` // run without outreach when no key configured
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Enabled:       true,
				Path:          "./data/leadforge.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
			Badger: BadgerConfig{
				Path: "./data/cache",
			},
		},
		Jobs: JobsConfig{
			MaxConcurrent:   10,
			MaxPerUser:      1,
			TimeoutMinutes:  30,
			TTLMinutes:      60,
			CleanupSchedule: "@every 1m",
			EventBufferSize: 100,
			WorkerCount:     3,
		},
		Maps: MapsConfig{
			BaseURL:        "https://maps.googleapis.com/maps/api/place",
			RatePerSecond:  2,
			RequestTimeout: "30s",
		},
		Enrich: EnrichConfig{
			RequestTimeout: "15s",
			UserAgent:      "Mozilla/5.0 (compatible; leadforge/1.0)",
			UseBrowser:     false,
			BrowserWait:    "3s",
		},
		Claude: ClaudeConfig{
			Model:         "claude-sonnet-4-20250514",
			MaxTokens:     4096,
			Timeout:       "2m",
			Temperature:   0.7,
			ResearchRPM:   10,
			SkipOnMissing: true,
		},
	}
}

// LoadConfig loads configuration from defaults, then the given TOML
// files in order, then environment overrides. Missing files are
// skipped silently so callers can pass candidate paths.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// DiscoverConfigPath returns the first leadforge.toml found next to the
// executable or in the working directory, or "" if neither exists.
func DiscoverConfigPath() string {
	candidates := []string{}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "leadforge.toml"))
	}
	candidates = append(candidates, "leadforge.toml")

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEADFORGE_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("LEADFORGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LEADFORGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("LEADFORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("LEADFORGE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	if path := os.Getenv("LEADFORGE_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if enabled := os.Getenv("LEADFORGE_SQLITE_ENABLED"); enabled != "" {
		config.Storage.SQLite.Enabled = enabled == "true" || enabled == "1"
	}
	if path := os.Getenv("LEADFORGE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if maxConcurrent := os.Getenv("LEADFORGE_JOBS_MAX_CONCURRENT"); maxConcurrent != "" {
		if n, err := strconv.Atoi(maxConcurrent); err == nil {
			config.Jobs.MaxConcurrent = n
		}
	}
	if maxPerUser := os.Getenv("LEADFORGE_JOBS_MAX_PER_USER"); maxPerUser != "" {
		if n, err := strconv.Atoi(maxPerUser); err == nil {
			config.Jobs.MaxPerUser = n
		}
	}
	if timeoutMinutes := os.Getenv("LEADFORGE_JOBS_TIMEOUT_MINUTES"); timeoutMinutes != "" {
		if n, err := strconv.Atoi(timeoutMinutes); err == nil {
			config.Jobs.TimeoutMinutes = n
		}
	}

	if apiKey := os.Getenv("LEADFORGE_MAPS_API_KEY"); apiKey != "" {
		config.Maps.APIKey = apiKey
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("LEADFORGE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
}

// RedactKey masks an API key for logging, keeping the first 4 chars.
func RedactKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
