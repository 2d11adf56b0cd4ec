package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.mail.tm", cfg.APIBaseURL)
	assert.Equal(t, "imap.firstmail.ltd", cfg.DefaultIMAPHost)
	assert.Equal(t, 993, cfg.IMAPPort)
	assert.Equal(t, 8*time.Second, cfg.IMAPTimeout)
	assert.Equal(t, 50, cfg.BulkMessageLimit)
	assert.Equal(t, 20, cfg.InteractiveMessageLimit)
	assert.Equal(t, 60, cfg.MaxWorkers)
	assert.Equal(t, "accounts.txt", cfg.AccountsFile)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://mail.example.com")
	t.Setenv("IMAP_PORT", "1993")
	t.Setenv("IMAP_TIMEOUT", "3s")
	t.Setenv("MAX_WORKERS", "12")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://mail.example.com", cfg.APIBaseURL)
	assert.Equal(t, 1993, cfg.IMAPPort)
	assert.Equal(t, 3*time.Second, cfg.IMAPTimeout)
	assert.Equal(t, 12, cfg.MaxWorkers)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("IMAP_PORT", "not-a-number")
	t.Setenv("IMAP_TIMEOUT", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 993, cfg.IMAPPort)
	assert.Equal(t, 8*time.Second, cfg.IMAPTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := LoadConfig()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api url", func(c *Config) { c.APIBaseURL = "" }},
		{"missing imap host", func(c *Config) { c.DefaultIMAPHost = "" }},
		{"port too high", func(c *Config) { c.IMAPPort = 70000 }},
		{"zero message limit", func(c *Config) { c.BulkMessageLimit = 0 }},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"missing accounts file", func(c *Config) { c.AccountsFile = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
