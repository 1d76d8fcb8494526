// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	FrontendURL         string
	DBPath              string
	CatalogPath         string // empty = embedded catalog
	VocabularyPath      string // empty = built-in vocabulary
	LogLevel            string
	Narrative           NarrativeConfig
	SessionIdleTTL      time.Duration
	IdleSweepInterval   time.Duration
	RateLimit           RateLimitConfig
	MaxRequestBodyBytes int64
	Transcript          TranscriptConfig
}

// NarrativeConfig configures the Gemini narrative engine.
type NarrativeConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RateLimitConfig bounds commands per device.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// TranscriptConfig controls per-session NDJSON transcripts.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/fixedness.db"),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		VocabularyPath: getEnv("VOCABULARY_PATH", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Narrative: NarrativeConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("NARRATIVE_MODEL", "gemini-2.0-flash"),
			Timeout: getEnvDuration("NARRATIVE_TIMEOUT", 30*time.Second),
		},
		SessionIdleTTL:    getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		IdleSweepInterval: getEnvDuration("IDLE_SWEEP_INTERVAL", 5*time.Minute),
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64*1024)),
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_LOG_ENABLED", true),
			Dir:       getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Narrative.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY cannot be empty")
	}
	if c.Narrative.Timeout <= 0 {
		return fmt.Errorf("NARRATIVE_TIMEOUT must be > 0")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.IdleSweepInterval <= 0 {
		return fmt.Errorf("IDLE_SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
