// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config captures runtime settings for the proxy. Every field can be set
// from the environment; command line flags override it.
type Config struct {
	// Host and Port form the local listen address.
	Host string `env:"PROXY_HOST,default=0.0.0.0"`
	Port int    `env:"PROXY_PORT,default=3928,strict"`

	// TargetScheme, TargetHost and TargetPort locate the upstream MCP server.
	TargetScheme string `env:"TARGET_SCHEME,default=http"`
	TargetHost   string `env:"TARGET_HOST,default=localhost"`
	TargetPort   int    `env:"TARGET_PORT,default=3927,strict"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	StringifyIDs         bool `env:"PROXY_STRINGIFY_IDS,default=true,strict"`
	StripExclusiveBounds bool `env:"PROXY_STRIP_EXCLUSIVE_BOUNDS,default=true,strict"`
	// MaxJSONBodyBytes caps buffered application/json bodies; 0 disables the cap.
	MaxJSONBodyBytes int64 `env:"PROXY_MAX_JSON_BODY_BYTES,default=0,strict"`

	InsecureSkipVerify bool `env:"PROXY_UPSTREAM_INSECURE,default=false,strict"`
	// ResponseHeaderTimeout bounds the wait for upstream headers; 0 waits forever.
	ResponseHeaderTimeout   time.Duration `env:"PROXY_RESPONSE_HEADER_TIMEOUT,default=0s,strict"`
	ServerReadTimeout       time.Duration `env:"PROXY_SERVER_READ_TIMEOUT,default=30s,strict"`
	ServerIdleTimeout       time.Duration `env:"PROXY_SERVER_IDLE_TIMEOUT,default=120s,strict"`
	GracefulShutdownTimeout time.Duration `env:"PROXY_GRACEFUL_SHUTDOWN,default=10s,strict"`
}

// FromEnv decodes the environment into a Config without validating it, so
// callers can apply overrides first.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return cfg, nil
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("PROXY_HOST must not be empty")
	}
	if err := checkPort("PROXY_PORT", c.Port); err != nil {
		return err
	}
	switch c.TargetScheme {
	case "http", "https":
	default:
		return fmt.Errorf("TARGET_SCHEME must be http or https, got %q", c.TargetScheme)
	}
	if strings.TrimSpace(c.TargetHost) == "" {
		return errors.New("TARGET_HOST must not be empty")
	}
	if err := checkPort("TARGET_PORT", c.TargetPort); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("LOG_FORMAT must be %s or %s, got %q", LogFormatJSON, LogFormatConsole, c.LogFormat)
	}
	if c.MaxJSONBodyBytes < 0 {
		return fmt.Errorf("PROXY_MAX_JSON_BODY_BYTES must not be negative, got %d", c.MaxJSONBodyBytes)
	}
	if c.ResponseHeaderTimeout < 0 {
		return errors.New("PROXY_RESPONSE_HEADER_TIMEOUT must not be negative")
	}
	return nil
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// ListenAddr is the host:port the proxy binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Upstream is the base URL every inbound request is forwarded to.
func (c Config) Upstream() *url.URL {
	return &url.URL{
		Scheme: c.TargetScheme,
		Host:   net.JoinHostPort(c.TargetHost, strconv.Itoa(c.TargetPort)),
	}
}
