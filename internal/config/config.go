package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds server configuration loaded from the environment.
type Config struct {
	// Server
	Port string `json:"port"`

	// Database
	DatabasePath    string        `json:"database_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Security. When APIKey is empty the finalize endpoint is open.
	APIKey string `json:"-"`

	// Notifications
	TeamsWebhookURL string        `json:"-"`
	NotifyTimeout   time.Duration `json:"notify_timeout"`

	// Serialized JSON caps. Oversized blobs are truncated with a
	// marker, never rejected.
	RawJSONMaxLen     int `json:"raw_json_max_len"`
	DetailsJSONMaxLen int `json:"details_json_max_len"`
	PreviewJSONMaxLen int `json:"preview_json_max_len"`

	// Rate limiting for the finalize endpoint, requests per second per
	// client, with a burst allowance.
	FinalizeRateLimit float64 `json:"finalize_rate_limit"`
	FinalizeRateBurst int     `json:"finalize_rate_burst"`

	// Logging
	LogLevel string `json:"log_level"`
}

// LoadConfig loads configuration from environment variables with
// defaults suitable for local development.
func LoadConfig() (*Config, error) {
	config := &Config{
		Port: getEnv("SERVER_PORT", "4000"),

		DatabasePath:    getEnv("DATABASE_PATH", "cku_data.db"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 3),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		APIKey: os.Getenv("API_KEY"),

		TeamsWebhookURL: os.Getenv("TEAMS_WEBHOOK_URL"),
		NotifyTimeout:   getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		RawJSONMaxLen:     getEnvInt("RAW_JSON_MAX_LEN", 2_000_000),
		DetailsJSONMaxLen: getEnvInt("DETAILS_JSON_MAX_LEN", 500_000),
		PreviewJSONMaxLen: getEnvInt("PREVIEW_JSON_MAX_LEN", 20_000),

		FinalizeRateLimit: getEnvFloat("FINALIZE_RATE_LIMIT", 5),
		FinalizeRateBurst: getEnvInt("FINALIZE_RATE_BURST", 10),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric: %q", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must not be negative, got %d", c.MaxIdleConns)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) must not exceed max open connections (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	}
	if c.RawJSONMaxLen <= 0 || c.DetailsJSONMaxLen <= 0 || c.PreviewJSONMaxLen <= 0 {
		return fmt.Errorf("JSON size caps must be positive")
	}
	if c.FinalizeRateLimit <= 0 {
		return fmt.Errorf("finalize rate limit must be positive, got %v", c.FinalizeRateLimit)
	}
	if c.FinalizeRateBurst <= 0 {
		return fmt.Errorf("finalize rate burst must be positive, got %d", c.FinalizeRateBurst)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
