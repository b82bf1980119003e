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

	assert.Equal(t, "mcp-gateway", cfg.Platform.Name)
	assert.Equal(t, "development", cfg.Platform.Environment)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL.Std())
	assert.Equal(t, DefaultBufferCapacity, cfg.Session.BufferCapacity)
	assert.Equal(t, 2*time.Minute, cfg.Duplex.StreamIdleTimeout.Std())
	assert.False(t, cfg.NATS.Enabled)
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTP.Port)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.json")

	content := `{
		"platform": {"name": "edge-gateway", "environment": "production"},
		"session": {"ttl": "10m", "buffer_capacity": 50},
		"http": {"port": 8888},
		"nats": {"enabled": true, "url": "nats://bus:4222"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "edge-gateway", cfg.Platform.Name)
	assert.Equal(t, "production", cfg.Platform.Environment)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL.Std())
	assert.Equal(t, 50, cfg.Session.BufferCapacity)
	assert.Equal(t, 8888, cfg.HTTP.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "/mcp", cfg.HTTP.BasePath)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gateway.json")
	assert.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_NATS_URL", "nats://override:4222")
	t.Setenv("GATEWAY_HTTP_PORT", "7070")
	t.Setenv("GATEWAY_ENVIRONMENT", "staging")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "staging", cfg.Platform.Environment)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.Platform.Environment = "qa" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"metrics port collision", func(c *Config) { c.Metrics.Port = c.HTTP.Port }},
		{"negative sse retry", func(c *Config) { c.HTTP.SSERetryMillis = -1 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.Session.TTL = 0
	cfg.Session.BufferCapacity = 0
	cfg.Duplex.StreamIdleTimeout = 0
	cfg.HTTP.BasePath = ""

	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultSessionTTL, cfg.Session.TTL.Std())
	assert.Equal(t, DefaultBufferCapacity, cfg.Session.BufferCapacity)
	assert.Equal(t, DefaultStreamIdleTimeout, cfg.Duplex.StreamIdleTimeout.Std())
	assert.Equal(t, "/mcp", cfg.HTTP.BasePath)
}

func TestDuration_Unmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"not a duration"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
