package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// REST mail API
	APIBaseURL string

	// IMAP fallback
	DefaultIMAPHost string
	IMAPPort        int
	IMAPTimeout     time.Duration

	// Ban-check behaviour
	BulkMessageLimit        int
	InteractiveMessageLimit int
	MaxWorkers              int

	// Caller-side persistence
	AccountsFile string
	HistoryPath  string
	ExcelFile    string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIBaseURL:              getEnv("API_BASE_URL", "https://api.mail.tm"),
		DefaultIMAPHost:         getEnv("DEFAULT_IMAP_HOST", "imap.firstmail.ltd"),
		IMAPPort:                getEnvInt("IMAP_PORT", 993),
		IMAPTimeout:             getEnvDuration("IMAP_TIMEOUT", 8*time.Second),
		BulkMessageLimit:        getEnvInt("BULK_MESSAGE_LIMIT", 50),
		InteractiveMessageLimit: getEnvInt("INTERACTIVE_MESSAGE_LIMIT", 20),
		MaxWorkers:              getEnvInt("MAX_WORKERS", 60),
		AccountsFile:            getEnv("ACCOUNTS_FILE", "accounts.txt"),
		HistoryPath:             getEnv("HISTORY_PATH", "check_history.db"),
		ExcelFile:               getEnv("EXCEL_FILE", "accounts.xlsx"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.DefaultIMAPHost == "" {
		return fmt.Errorf("DEFAULT_IMAP_HOST is required")
	}
	if c.IMAPPort < 1 || c.IMAPPort > 65535 {
		return fmt.Errorf("invalid IMAP_PORT")
	}
	if c.BulkMessageLimit < 1 || c.BulkMessageLimit > 1000 {
		return fmt.Errorf("BULK_MESSAGE_LIMIT must be between 1 and 1000")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be positive")
	}
	if c.AccountsFile == "" {
		return fmt.Errorf("ACCOUNTS_FILE is required")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
