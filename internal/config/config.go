// Package config loads service configuration from the process environment.
package config

import (
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
)

// Config holds everything the service needs at startup.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT,default=8080"`

	Logging LoggingConfig

	// CountriesURL and RatesURL point at the upstream data sources. They are
	// overridable so tests and air-gapped environments can stub them.
	CountriesURL string `env:"COUNTRIES_API_URL,default=https://restcountries.com/v2/all?fields=name,capital,region,population,flag,currencies"`
	RatesURL     string `env:"EXCHANGE_RATE_API_URL,default=https://open.er-api.com/v6/latest/USD"`

	// ImageDir is where the generated summary image is written.
	ImageDir string `env:"IMAGE_DIR,default=cache"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// Load reads configuration from the environment. It fails when DATABASE_URL
// is absent or PORT does not parse as a number.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be a valid port number, got %d", cfg.Port)
	}
	return &cfg, nil
}
