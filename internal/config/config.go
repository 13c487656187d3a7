// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is the server configuration, read from the environment.
// A .env file is loaded by cmd/server before Load is called.
type Config struct {
	Port            string        `env:"PORT"              envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL"         envDefault:"info"`
	TokenExpireTime time.Duration `env:"TOKEN_EXPIRE_TIME"` // zero means tokens never expire

	// Raw ed25519 key files. When either is empty a key pair is generated at startup.
	AuthPrivateKey string `env:"AUTH_PRIVATE_KEY"`
	AuthPublicKey  string `env:"AUTH_PUBLIC_KEY"`

	RedisAddr   string `env:"REDIS_ADDR"` // empty disables the Redis event sink
	RedisDB     int    `env:"REDIS_DB"          envDefault:"0"`
	EventsQueue string `env:"ROOM_EVENTS_QUEUE" envDefault:"roomd_events"`

	DatabaseURL string `env:"DATABASE_URL"` // empty disables the event archive

	EventBuffer int `env:"EVENT_BUFFER" envDefault:"256"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.EventBuffer < 1 {
		return Config{}, fmt.Errorf("EVENT_BUFFER must be positive, got %d", cfg.EventBuffer)
	}
	return cfg, nil
}

// Level returns the logrus level for LogLevel.
func (c Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// HistorianConfig configures cmd/historian.
type HistorianConfig struct {
	LogLevel      string        `env:"LOG_LEVEL"                  envDefault:"info"`
	RedisAddr     string        `env:"REDIS_ADDR"                 envDefault:"localhost:6379"`
	RedisDB       int           `env:"REDIS_DB"                   envDefault:"0"`
	EventsQueue   string        `env:"ROOM_EVENTS_QUEUE"          envDefault:"roomd_events"`
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	BatchSize     int           `env:"HISTORIAN_BATCH_SIZE"       envDefault:"20"`
	FlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL"   envDefault:"500ms"`
}

// LoadHistorian parses the environment into a HistorianConfig.
func LoadHistorian() (HistorianConfig, error) {
	var cfg HistorianConfig
	if err := env.Parse(&cfg); err != nil {
		return HistorianConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Level returns the logrus level for LogLevel.
func (c HistorianConfig) Level() (logrus.Level, error) {
	return Config{LogLevel: c.LogLevel}.Level()
}
