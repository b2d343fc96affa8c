// Package config provides application configuration management from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds process configuration for a segqueue deployment.
type Config struct {
	QueueDir       string
	SegmentPrefix  string
	MaxSegmentSize int64
	SyncHard       bool
	LogLevel       string
	APIHost        string
	APIPort        string
	RetentionMs    int64
	CatalogDSN     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	maxSegmentSize, err := getInt64Env("MAX_SEGMENT_SIZE", 64<<20)
	if err != nil {
		return nil, fmt.Errorf("MAX_SEGMENT_SIZE: %w", err)
	}
	retentionMs, err := getInt64Env("RETENTION_MS", 7*24*60*60*1000)
	if err != nil {
		return nil, fmt.Errorf("RETENTION_MS: %w", err)
	}
	syncHard, err := getBoolEnv("SYNC_HARD", false)
	if err != nil {
		return nil, fmt.Errorf("SYNC_HARD: %w", err)
	}

	cfg := &Config{
		QueueDir:       getEnv("QUEUE_DIR", "./data"),
		SegmentPrefix:  getEnv("SEGMENT_PREFIX", "segqueue"),
		MaxSegmentSize: maxSegmentSize,
		SyncHard:       syncHard,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		APIPort:        getEnv("API_PORT", "8080"),
		RetentionMs:    retentionMs,
		CatalogDSN:     getEnv("CATALOG_DSN", ""),
	}

	if cfg.QueueDir == "" {
		return nil, fmt.Errorf("QUEUE_DIR is required")
	}
	if cfg.MaxSegmentSize <= 0 {
		return nil, fmt.Errorf("MAX_SEGMENT_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt64Env(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}
