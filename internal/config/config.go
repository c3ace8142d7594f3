package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field maps 1:1 to a documented env var.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Local store
	DataPath string `mapstructure:"DATA_PATH"` // sqlite file, ":memory:" for tests

	// Merchant cloud
	CloudAPIURL      string        `mapstructure:"CLOUD_API_URL"`
	CloudTimeout     time.Duration `mapstructure:"CLOUD_TIMEOUT"`
	CredentialsPath  string        `mapstructure:"CREDENTIALS_PATH"`

	// Connectivity prober
	ProbeInterval time.Duration `mapstructure:"PROBE_INTERVAL"`
	ProbeTimeout  time.Duration `mapstructure:"PROBE_TIMEOUT"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("PORT", 8400)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATA_PATH", "tillsync.db")
	viper.SetDefault("CLOUD_API_URL", "http://localhost:8787/api")
	viper.SetDefault("CLOUD_TIMEOUT", "15s")
	viper.SetDefault("CREDENTIALS_PATH", ".tillsync-credentials")
	viper.SetDefault("PROBE_INTERVAL", "10s")
	viper.SetDefault("PROBE_TIMEOUT", "3s")

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
