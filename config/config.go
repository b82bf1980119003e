// Package config provides configuration loading and validation for the gateway.
// Configuration is a single JSON document loaded from disk with environment
// variable overrides for deployment-specific values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default values applied when a field is absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultMetricsPort       = 9090
	DefaultSessionTTL        = 30 * time.Minute
	DefaultSweepInterval     = 1 * time.Minute
	DefaultBufferCapacity    = 100
	DefaultStreamIdleTimeout = 2 * time.Minute
	DefaultSSEHeartbeat      = 15 * time.Second
	DefaultSSERetryMillis    = 3000
	DefaultMaxRequestSize    = 4 << 20 // 4 MiB
	DefaultMaxFrameSize      = 1 << 20 // 1 MiB per duplex frame
	DefaultPingInterval      = 30 * time.Second
	DefaultNATSPrefix        = "notify"
)

// Duration wraps time.Duration so config files can use human-readable
// values like "30m" or "15s".
type Duration time.Duration

// UnmarshalJSON parses either a duration string ("30s") or a number of
// nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PlatformConfig holds process identity used in logs and metrics.
type PlatformConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment"` // "development", "staging", "production"
}

// NATSConfig holds the connection settings for the notification bus.
// When Enabled is false the gateway runs standalone: notifications can
// only originate from in-process producers.
type NATSConfig struct {
	Enabled       bool     `json:"enabled"`
	URL           string   `json:"url"`
	MaxReconnects int      `json:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait"`
	SubjectPrefix string   `json:"subject_prefix"` // subjects <prefix>.> feed the dispatcher
}

// SessionConfig controls session lifetime and buffering.
type SessionConfig struct {
	TTL            Duration `json:"ttl"`             // sliding idle expiry
	SweepInterval  Duration `json:"sweep_interval"`  // background expiry sweep cadence
	BufferCapacity int      `json:"buffer_capacity"` // per-session replay buffer size
}

// DuplexConfig controls the full-duplex websocket streaming endpoint.
type DuplexConfig struct {
	Path              string   `json:"path"`
	StreamIdleTimeout Duration `json:"stream_idle_timeout"`
	MaxFrameSize      int64    `json:"max_frame_size"`
	PingInterval      Duration `json:"ping_interval"`
}

// HTTPConfig controls the request/response and SSE surfaces.
type HTTPConfig struct {
	Port           int      `json:"port"`
	BasePath       string   `json:"base_path"`
	MaxRequestSize int64    `json:"max_request_size"`
	EnableCORS     bool     `json:"enable_cors"`
	CORSOrigins    []string `json:"cors_origins"`
	SSEHeartbeat   Duration `json:"sse_heartbeat"`
	SSERetryMillis int      `json:"sse_retry_ms"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Config represents the complete gateway configuration.
type Config struct {
	Platform PlatformConfig `json:"platform"`
	NATS     NATSConfig     `json:"nats"`
	Session  SessionConfig  `json:"session"`
	HTTP     HTTPConfig     `json:"http"`
	Duplex   DuplexConfig   `json:"duplex"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// Default returns a configuration populated with development defaults.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:        "mcp-gateway",
			Environment: "development",
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			SubjectPrefix: DefaultNATSPrefix,
		},
		Session: SessionConfig{
			TTL:            Duration(DefaultSessionTTL),
			SweepInterval:  Duration(DefaultSweepInterval),
			BufferCapacity: DefaultBufferCapacity,
		},
		HTTP: HTTPConfig{
			Port:           DefaultHTTPPort,
			BasePath:       "/mcp",
			MaxRequestSize: DefaultMaxRequestSize,
			EnableCORS:     false,
			CORSOrigins:    []string{"*"},
			SSEHeartbeat:   Duration(DefaultSSEHeartbeat),
			SSERetryMillis: DefaultSSERetryMillis,
		},
		Duplex: DuplexConfig{
			Path:              "/stream",
			StreamIdleTimeout: Duration(DefaultStreamIdleTimeout),
			MaxFrameSize:      DefaultMaxFrameSize,
			PingInterval:      Duration(DefaultPingInterval),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    DefaultMetricsPort,
			Path:    "/metrics",
		},
	}
}

// Load reads a JSON config file, applies defaults for absent fields and
// environment overrides, and validates the result. An empty path returns
// the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployments override connection-level settings
// without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GATEWAY_NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	if v := os.Getenv("GATEWAY_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Metrics.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_ENVIRONMENT"); v != "" {
		c.Platform.Environment = v
	}
}

// Validate checks configuration invariants and fills in zero values that
// JSON unmarshalling may have left behind.
func (c *Config) Validate() error {
	if c.Platform.Name == "" {
		c.Platform.Name = "mcp-gateway"
	}

	switch c.Platform.Environment {
	case "development", "staging", "production":
	case "":
		c.Platform.Environment = "development"
	default:
		return fmt.Errorf("invalid environment %q (want development, staging, or production)",
			c.Platform.Environment)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.HTTP.BasePath == "" {
		c.HTTP.BasePath = "/mcp"
	}
	if c.HTTP.MaxRequestSize <= 0 {
		c.HTTP.MaxRequestSize = DefaultMaxRequestSize
	}
	if c.HTTP.SSEHeartbeat <= 0 {
		c.HTTP.SSEHeartbeat = Duration(DefaultSSEHeartbeat)
	}
	if c.HTTP.SSERetryMillis < 0 {
		return fmt.Errorf("invalid sse retry %d ms", c.HTTP.SSERetryMillis)
	}

	if c.Session.TTL <= 0 {
		c.Session.TTL = Duration(DefaultSessionTTL)
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = Duration(DefaultSweepInterval)
	}
	if c.Session.BufferCapacity <= 0 {
		c.Session.BufferCapacity = DefaultBufferCapacity
	}

	if c.Duplex.Path == "" {
		c.Duplex.Path = "/stream"
	}
	if c.Duplex.StreamIdleTimeout <= 0 {
		c.Duplex.StreamIdleTimeout = Duration(DefaultStreamIdleTimeout)
	}
	if c.Duplex.MaxFrameSize <= 0 {
		c.Duplex.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.Duplex.PingInterval <= 0 {
		c.Duplex.PingInterval = Duration(DefaultPingInterval)
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("nats enabled but url is empty")
		}
		if c.NATS.SubjectPrefix == "" {
			c.NATS.SubjectPrefix = DefaultNATSPrefix
		}
		if c.NATS.ReconnectWait <= 0 {
			c.NATS.ReconnectWait = Duration(2 * time.Second)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.HTTP.Port {
			return fmt.Errorf("metrics port %d collides with http port", c.Metrics.Port)
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	return nil
}
