// Package config defines environment configuration structs and loaders.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// EnvAPIKey is the variable consulted when no API key is given explicitly.
const EnvAPIKey = "DATAGEN_API_KEY"

type AppConfig struct {
	ClientEnvConfig
	LogEnvConfig
}

// LoadConfig reads the full application configuration from the process environment.
func LoadConfig(ctx context.Context) (*AppConfig, error) {
	return LoadConfigWith(ctx, envconfig.OsLookuper())
}

// LoadConfigWith reads the application configuration through the given lookuper.
func LoadConfigWith(ctx context.Context, l envconfig.Lookuper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("process app env: %w", err)
	}
	return cfg, nil
}

// LoadClientEnv reads only the API client settings.
func LoadClientEnv(ctx context.Context) (*ClientEnvConfig, error) {
	cfg := &ClientEnvConfig{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process client env: %w", err)
	}
	return cfg, nil
}

// ClientEnvConfig configures access to the generation API.
type ClientEnvConfig struct {
	APIKey      string        `env:"DATAGEN_API_KEY"`
	BaseURL     string        `env:"DATAGEN_BASE_URL, default=http://localhost:8000"`
	APIVersion  string        `env:"DATAGEN_API_VERSION, default=v2"`
	Timeout     time.Duration `env:"DATAGEN_TIMEOUT, default=60s"`
	MaxRetries  int           `env:"DATAGEN_MAX_RETRIES, default=0"`
	Compression bool          `env:"DATAGEN_COMPRESSION, default=false"`
}

// LogEnvConfig controls log verbosity.
type LogEnvConfig struct {
	Environment string `env:"ENVIRONMENT, default=prod"`
	LogLevel    string `env:"LOG_LEVEL"`
}
