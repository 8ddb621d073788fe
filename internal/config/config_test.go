package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Relay.Port)
	assert.Equal(t, ":3000", cfg.Landing.Port)
	assert.True(t, cfg.Landing.Enabled)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.Relay.MaxMessageSize)
	assert.Equal(t, DefaultSendBufferSize, cfg.Relay.SendBufferSize)
	assert.Equal(t, DefaultRateBurst, cfg.Relay.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.Relay.RateLimit.RefillInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty relay port", mutate: func(c *Config) { c.Relay.Port = "" }, wantErr: true},
		{name: "zero message size", mutate: func(c *Config) { c.Relay.MaxMessageSize = 0 }, wantErr: true},
		{name: "zero send buffer", mutate: func(c *Config) { c.Relay.SendBufferSize = 0 }, wantErr: true},
		{name: "negative burst", mutate: func(c *Config) { c.Relay.RateLimit.Burst = -1 }, wantErr: true},
		{name: "zero refill interval", mutate: func(c *Config) { c.Relay.RateLimit.RefillInterval = 0 }, wantErr: true},
		{name: "port collision", mutate: func(c *Config) { c.Landing.Port = c.Relay.Port }, wantErr: true},
		{
			name: "port collision across spellings",
			mutate: func(c *Config) {
				c.Relay.Port = ":8080"
				c.Landing.Port = "0.0.0.0:8080"
			},
			wantErr: true,
		},
		{
			name: "port collision with explicit host",
			mutate: func(c *Config) {
				c.Relay.Port = "127.0.0.1:9000"
				c.Landing.Port = ":9000"
			},
			wantErr: true,
		},
		{
			name: "same port on distinct hosts",
			mutate: func(c *Config) {
				c.Relay.Port = "127.0.0.1:9000"
				c.Landing.Port = "127.0.0.2:9000"
			},
		},
		{
			name: "port collision ignored when landing disabled",
			mutate: func(c *Config) {
				c.Landing.Enabled = false
				c.Landing.Port = c.Relay.Port
			},
		},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "unknown format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("LANDING_PORT", ":4000")
	t.Setenv("STATIC_DIR", "/srv/public")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("SEND_BUFFER_SIZE", "32")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, ":9090", cfg.Relay.Port)
	assert.Equal(t, ":4000", cfg.Landing.Port)
	assert.Equal(t, "/srv/public", cfg.Landing.StaticDir)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.Relay.MaxMessageSize)
	assert.Equal(t, 32, cfg.Relay.SendBufferSize)
	assert.Equal(t, 7, cfg.Relay.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.Relay.RateLimit.RefillInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
}

func TestApplyEnvInvalidValuesKeepCurrent(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")
	t.Setenv("RATE_LIMIT_BURST", "-4")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.Relay.MaxMessageSize)
	assert.Equal(t, DefaultRateBurst, cfg.Relay.RateLimit.Burst)
	assert.Equal(t, DefaultRefillInterval, cfg.Relay.RateLimit.RefillInterval)
	assert.Equal(t, DefaultShutdown, cfg.ShutdownTimeout)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("RELAY_TEST_PORT", ":7070")

	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	content := `
relay:
  port: ${RELAY_TEST_PORT}
  allowed_origins:
    - "*"
  rate_limit:
    burst: 10
    refill_interval: 2s
landing:
  port: ${RELAY_TEST_LANDING:-:3100}
  static_dir: ./public
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Relay.Port)
	assert.Equal(t, []string{"*"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, 10, cfg.Relay.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.Relay.RateLimit.RefillInterval)
	assert.Equal(t, ":3100", cfg.Landing.Port)
	assert.Equal(t, "./public", cfg.Landing.StaticDir)
	assert.True(t, cfg.Landing.Enabled, "unspecified fields keep defaults")
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.Relay.MaxMessageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("relay: [unterminated"), 0o644))

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("logging:\n  format: xml\n"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "wrong extension", path: filepath.Join(dir, "relay.json")},
		{name: "missing file", path: filepath.Join(dir, "missing.yaml")},
		{name: "whitespace only", path: empty},
		{name: "bad syntax", path: broken},
		{name: "fails validation", path: invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(tt.path)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yml")
	require.NoError(t, os.WriteFile(path, []byte("relay:\n  port: \":7000\"\nlanding:\n  port: \":7001\"\n"), 0o644))

	t.Setenv("SERVER_PORT", ":7500")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7500", cfg.Relay.Port, "environment overrides file")
	assert.Equal(t, ":7001", cfg.Landing.Port)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7500", cfg.Relay.Port)
	assert.Equal(t, DefaultLandingPort, cfg.Landing.Port)
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a", "*"}, ParseOrigins(" http://a ,*, "))
	assert.Empty(t, ParseOrigins(" , "))
}
