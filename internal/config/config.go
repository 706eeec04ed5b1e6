package config

import (
	"time"

	"github.com/skillswap/realtime/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Broker  BrokerConfig   `json:"broker" yaml:"broker"`
	Auth    AuthConfig     `json:"auth" yaml:"auth"`
	Client  ClientConfig   `json:"client" yaml:"client"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// BrokerConfig represents the broker server configuration
type BrokerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// AuthConfig represents credential issuance configuration.
// Tokens are deliberately short-lived; they are presented once at
// connect time and never reused.
type AuthConfig struct {
	Secret   string        `json:"secret" yaml:"secret"`
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// ClientConfig represents the realtime client configuration
type ClientConfig struct {
	BrokerURL string `json:"broker_url" yaml:"broker_url"`
	TokenURL  string `json:"token_url" yaml:"token_url"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:         "localhost",
			Port:         4000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Auth: AuthConfig{
			Secret:   "dev-only-secret",
			TokenTTL: 90 * time.Second,
		},
		Client: ClientConfig{
			BrokerURL: "ws://localhost:4000/ws",
			TokenURL:  "http://localhost:4000/realtime/token",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return NewConfigError("broker.port", "invalid port number")
	}

	if c.Broker.ReadTimeout < 0 {
		return NewConfigError("broker.read_timeout", "timeout cannot be negative")
	}

	if c.Broker.WriteTimeout < 0 {
		return NewConfigError("broker.write_timeout", "timeout cannot be negative")
	}

	if c.Auth.Secret == "" {
		return NewConfigError("auth.secret", "signing secret is required")
	}

	if c.Auth.TokenTTL <= 0 || c.Auth.TokenTTL >= 2*time.Minute {
		return NewConfigError("auth.token_ttl", "token ttl must be positive and under two minutes")
	}

	return nil
}
