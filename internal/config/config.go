package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv         string        `env:"APP_ENV" default:"development"`
	Port           string        `env:"PORT" default:"8080"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	AdminToken     string        `env:"ADMIN_TOKEN"`
	ListenChannel  string        `env:"LISTEN_CHANNEL" default:"stock_updates"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" default:"5s"`
	LogLevel       string        `env:"LOG_LEVEL" default:"info"`
	LogFormat      string        `env:"LOG_FORMAT" default:"text"`

	// Connection admission limits
	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"1000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionsPerSec   float64 `env:"CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"ADMIN_TOKEN":  cfg.AdminToken,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", cfg.ReconnectDelay)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}

	return nil
}
