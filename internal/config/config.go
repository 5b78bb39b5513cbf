package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Storage settings
	DBPath      string `env:"MAILSYNC_DB_PATH" envDefault:"data/mailsync.db"`
	ServersFile string `env:"MAILSYNC_SERVERS_FILE" envDefault:"servers.yaml"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Sync engine
	NetworkTimeout time.Duration `env:"MAILSYNC_NETWORK_TIMEOUT" envDefault:"5m"`
	Workers        int           `env:"MAILSYNC_WORKERS" envDefault:"4"`
	FetchBatchSize int           `env:"MAILSYNC_FETCH_BATCH" envDefault:"50"`

	// Schedule for the serve command, cron syntax with seconds
	Schedule string `env:"MAILSYNC_SCHEDULE" envDefault:"0 */15 * * * *"`
}

// LoadConfig loads configuration from the environment, reading a .env file
// first when one is present.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("MAILSYNC_DB_PATH is required")
	}

	if c.NetworkTimeout <= 0 {
		return fmt.Errorf("MAILSYNC_NETWORK_TIMEOUT must be positive")
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("MAILSYNC_WORKERS must be between 1 and 64")
	}

	if c.FetchBatchSize < 1 || c.FetchBatchSize > 1000 {
		return fmt.Errorf("MAILSYNC_FETCH_BATCH must be between 1 and 1000")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}
