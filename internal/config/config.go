// Package config defines the runtime settings for the relay and the landing
// server, their defaults, and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// RelayConfig holds the WebSocket relay listener settings.
type RelayConfig struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	SendBufferSize int             `yaml:"send_buffer_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// LandingConfig holds the settings of the companion HTTP server.
type LandingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// LoggingConfig selects the log level, encoding and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Config is the complete process configuration.
type Config struct {
	Relay           RelayConfig   `yaml:"relay"`
	Landing         LandingConfig `yaml:"landing"`
	Logging         LoggingConfig `yaml:"logging"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

const (
	DefaultRelayPort      = ":8080"
	DefaultLandingPort    = ":3000"
	DefaultMaxMessageSize = 64 * 1024
	DefaultSendBufferSize = 256
	DefaultRateBurst      = 50
	DefaultRefillInterval = time.Second
	DefaultShutdown       = 10 * time.Second
)

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Relay:   DefaultRelayConfig(),
		Landing: DefaultLandingConfig(),
		Logging: DefaultLoggingConfig(),

		ShutdownTimeout: DefaultShutdown,
	}
}

// DefaultRelayConfig returns the default relay listener settings.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Port: DefaultRelayPort,
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:8080",
		},
		MaxMessageSize: DefaultMaxMessageSize,
		SendBufferSize: DefaultSendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          DefaultRateBurst,
			RefillInterval: DefaultRefillInterval,
		},
	}
}

// DefaultLandingConfig returns the default companion server settings.
func DefaultLandingConfig() LandingConfig {
	return LandingConfig{
		Enabled: true,
		Port:    DefaultLandingPort,
	}
}

// DefaultLoggingConfig returns info-level text logs on stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}

// applyDefaults fills zero-valued fields that were not specified.
func applyDefaults(cfg *Config) {
	if cfg.Relay.Port == "" {
		cfg.Relay.Port = DefaultRelayPort
	}
	if cfg.Relay.MaxMessageSize <= 0 {
		cfg.Relay.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.Relay.SendBufferSize <= 0 {
		cfg.Relay.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.Relay.RateLimit.Burst <= 0 {
		cfg.Relay.RateLimit.Burst = DefaultRateBurst
	}
	if cfg.Relay.RateLimit.RefillInterval <= 0 {
		cfg.Relay.RateLimit.RefillInterval = DefaultRefillInterval
	}
	if cfg.Landing.Port == "" {
		cfg.Landing.Port = DefaultLandingPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdown
	}
}

// addressesCollide reports whether two listen addresses would bind the same
// port. A wildcard host overlaps every host.
func addressesCollide(a, b string) bool {
	hostA, portA, errA := net.SplitHostPort(a)
	hostB, portB, errB := net.SplitHostPort(b)
	if errA != nil || errB != nil {
		return a == b
	}
	if portA != portB {
		return false
	}
	return isWildcardHost(hostA) || isWildcardHost(hostB) || hostA == hostB
}

func isWildcardHost(host string) bool {
	return host == "" || host == "0.0.0.0" || host == "::"
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if c.Relay.Port == "" {
		return errors.New("relay port cannot be empty")
	}
	if c.Relay.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.Relay.MaxMessageSize)
	}
	if c.Relay.SendBufferSize <= 0 {
		return fmt.Errorf("send buffer size must be positive, got %d", c.Relay.SendBufferSize)
	}
	if c.Relay.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit burst must be positive, got %d", c.Relay.RateLimit.Burst)
	}
	if c.Relay.RateLimit.RefillInterval <= 0 {
		return fmt.Errorf("rate limit refill interval must be positive, got %s", c.Relay.RateLimit.RefillInterval)
	}
	if c.Landing.Enabled {
		if c.Landing.Port == "" {
			return errors.New("landing port cannot be empty when the landing server is enabled")
		}
		if addressesCollide(c.Landing.Port, c.Relay.Port) {
			return fmt.Errorf("landing port %s collides with relay port", c.Landing.Port)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
