package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	EventsTopic string `env:"EVENTS_TOPIC" default:"familyhub:events"`
	Origins     string `env:"ORIGINS"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	PublishTimeout    time.Duration `env:"PUBLISH_TIMEOUT" default:"2s"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`

	EventsRateLimit float64 `env:"EVENTS_RATE_LIMIT" default:"5"`
	EventsRateBurst int     `env:"EVENTS_RATE_BURST" default:"10"`
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

// BroadcastEnabled reports whether a Redis URL was configured. Without one the
// service runs in degraded mode: events are stored but never fanned out.
func (c *Config) BroadcastEnabled() bool {
	return c.RedisURL != ""
}

// AllowedOrigins returns the parsed ORIGINS list, or ["*"] when unset.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.Origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if cfg.RedisURL != "" {
		u, err := url.Parse(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("REDIS_URL must use redis:// or rediss://, got %q", u.Scheme)
		}
	}

	if strings.TrimSpace(cfg.EventsTopic) == "" {
		return errors.New("EVENTS_TOPIC must not be empty")
	}
	if cfg.HeartbeatInterval <= 0 {
		return errors.New("HEARTBEAT_INTERVAL must be positive")
	}
	if cfg.PublishTimeout <= 0 {
		return errors.New("PUBLISH_TIMEOUT must be positive")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.EventsRateLimit <= 0 || cfg.EventsRateBurst < 1 {
		return errors.New("EVENTS_RATE_LIMIT and EVENTS_RATE_BURST must be positive")
	}

	return nil
}
