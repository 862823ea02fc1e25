package config

import (
	"context"
	"net"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the relay process.
type Config struct {
	Host      string `env:"HOST,       default=0.0.0.0"`
	Port      string `env:"PORT,       default=8080"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=true"`
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present, for development.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
