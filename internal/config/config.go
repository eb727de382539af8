package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	StateDir    string // Directory holding persisted position records
	DBPath      string // Path to SQLite database file for the read history
	Listen      string // HTTP listen address
	HistoryDays int    // Days to retain read-history rows
	LogLevel    string // Log level: trace, debug, info, warn, error

	// Authentication settings (all optional)
	HtpasswdFile string // Path to htpasswd file for authentication
	AuthUser     string // Basic auth username (plaintext)
	AuthPass     string // Basic auth password (plaintext)
}

// Load reads configuration from environment variables and applies defaults
func Load() (*Config, error) {
	cfg := &Config{
		StateDir:     getEnvOrDefault("LOGSIFT_STATE_DIR", "/var/opt/logsift/state"),
		DBPath:       getEnvOrDefault("LOGSIFT_DB_PATH", "/var/opt/logsift/logsift.db"),
		Listen:       getEnvOrDefault("LOGSIFT_LISTEN", ":8080"),
		LogLevel:     getEnvOrDefault("LOGSIFT_LOG_LEVEL", "info"),
		HtpasswdFile: os.Getenv("LOGSIFT_HTPASSWD_FILE"),
		AuthUser:     os.Getenv("LOGSIFT_AUTH_USER"),
		AuthPass:     os.Getenv("LOGSIFT_AUTH_PASS"),
	}

	// Parse history retention with default
	historyStr := getEnvOrDefault("LOGSIFT_HISTORY_DAYS", "90")
	historyDays, err := strconv.Atoi(historyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LOGSIFT_HISTORY_DAYS: %w", err)
	}
	if historyDays <= 0 {
		return nil, fmt.Errorf("LOGSIFT_HISTORY_DAYS must be positive, got %d", historyDays)
	}
	cfg.HistoryDays = historyDays

	return cfg, nil
}

// getEnvOrDefault returns the environment variable value or the default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
