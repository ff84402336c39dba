package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Env  string `envconfig:"ENV" default:"development"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	// PhaseGrace is added to every phase duration before the transition
	// fires, so the last countdown tick always lands before the switch.
	PhaseGrace    time.Duration `envconfig:"PHASE_GRACE" default:"300ms"`
	SweepInterval time.Duration `envconfig:"ROOM_SWEEP_INTERVAL" default:"10m"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"` // "json" or "text"
}

// Load reads configuration from the environment, after a best-effort .env
// load for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}
