package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all plugin host configuration.
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	Plugin    PluginConfig
	Sandbox   SandboxConfig
	Assets    AssetsConfig
	Logging   LogConfig
}

// ServerConfig holds the renderer/metrics HTTP listener. AllowOrigins lists
// the browser origins allowed to read it cross-origin.
type ServerConfig struct {
	Port         string   `envconfig:"PORT" default:"8700"`
	Host         string   `envconfig:"HOST" default:"127.0.0.1"`
	AllowOrigins []string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

// RateLimitConfig bounds per-client HTTP requests, including WebSocket
// upgrades.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// PluginConfig locates the plugin being hosted.
type PluginConfig struct {
	Dir            string `envconfig:"PLUGIN_DIR" default:"."`
	Manifest       string `envconfig:"PLUGIN_MANIFEST" default:"plugin.toml"`
	Script         string `envconfig:"PLUGIN_SCRIPT"`
	ComponentModel string `envconfig:"PLUGIN_COMPONENT_MODEL"`
}

// SandboxConfig bounds plugin script execution.
type SandboxConfig struct {
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	MaxCallStack  int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	EnableConsole bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// AssetsConfig controls image resolution. Remote fetches are attempted once
// unless Retries is raised.
type AssetsConfig struct {
	FetchTimeout      time.Duration `envconfig:"ASSETS_FETCH_TIMEOUT" default:"30s"`
	Retries           int           `envconfig:"ASSETS_RETRIES" default:"0"`
	RetryWaitMin      time.Duration `envconfig:"ASSETS_RETRY_WAIT_MIN" default:"500ms"`
	RetryWaitMax      time.Duration `envconfig:"ASSETS_RETRY_WAIT_MAX" default:"5s"`
	RequestsPerSecond float64       `envconfig:"ASSETS_RPS" default:"0"`
	MaxBytes          int64         `envconfig:"ASSETS_MAX_BYTES" default:"10485760"`
	Concurrency       int           `envconfig:"ASSETS_CONCURRENCY" default:"8"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8700",
			Host:         "127.0.0.1",
			AllowOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Plugin: PluginConfig{
			Dir:      ".",
			Manifest: "plugin.toml",
		},
		Sandbox: SandboxConfig{
			Timeout:       5 * time.Second,
			MaxCallStack:  1024,
			EnableConsole: true,
		},
		Assets: AssetsConfig{
			FetchTimeout: 30 * time.Second,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
			MaxBytes:     10 << 20,
			Concurrency:  8,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
