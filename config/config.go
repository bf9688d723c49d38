/*
Package config loads process configuration from the environment.

PURPOSE:
  One struct, parsed once at startup. Command-line flags in cmd/server may
  override individual fields for local runs.

VARIABLES:
  ADDR          listen address          (default :8080)
  DB_PATH       SQLite database path    (default registry.db)
  DEBUG         verbose logging + error details in responses (default false)
  CORS_ORIGINS  comma-separated allowed origins
*/
package config

import (
	"github.com/caarlos0/env/v11"
)

// Config is the process configuration.
type Config struct {
	Addr        string   `env:"ADDR" envDefault:":8080"`
	DBPath      string   `env:"DB_PATH" envDefault:"registry.db"`
	Debug       bool     `env:"DEBUG" envDefault:"false"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
