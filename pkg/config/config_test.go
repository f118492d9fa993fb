// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"strings"
	"testing"
	"time"
)

var allEnv = []string{
	"PROXY_HOST", "PROXY_PORT", "TARGET_SCHEME", "TARGET_HOST", "TARGET_PORT",
	"LOG_LEVEL", "LOG_FORMAT", "PROXY_STRINGIFY_IDS", "PROXY_STRIP_EXCLUSIVE_BOUNDS",
	"PROXY_MAX_JSON_BODY_BYTES", "PROXY_UPSTREAM_INSECURE", "PROXY_RESPONSE_HEADER_TIMEOUT",
	"PROXY_SERVER_READ_TIMEOUT", "PROXY_SERVER_IDLE_TIMEOUT", "PROXY_GRACEFUL_SHUTDOWN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.ListenAddr(); got != "0.0.0.0:3928" {
		t.Errorf("listen addr = %s", got)
	}
	if got := cfg.Upstream().String(); got != "http://localhost:3927" {
		t.Errorf("upstream = %s", got)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != LogFormatJSON {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.StringifyIDs || !cfg.StripExclusiveBounds {
		t.Errorf("rewrites should default on: %+v", cfg)
	}
	if cfg.MaxJSONBodyBytes != 0 || cfg.ResponseHeaderTimeout != 0 {
		t.Errorf("limits should default off: %+v", cfg)
	}
	if cfg.ServerReadTimeout != 30*time.Second || cfg.ServerIdleTimeout != 120*time.Second || cfg.GracefulShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected server timeouts: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_HOST", "127.0.0.1")
	t.Setenv("PROXY_PORT", "9000")
	t.Setenv("TARGET_SCHEME", "https")
	t.Setenv("TARGET_HOST", "mcp.internal")
	t.Setenv("TARGET_PORT", "8443")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "Console")
	t.Setenv("PROXY_STRINGIFY_IDS", "false")
	t.Setenv("PROXY_MAX_JSON_BODY_BYTES", "1048576")
	t.Setenv("PROXY_RESPONSE_HEADER_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.ListenAddr(); got != "127.0.0.1:9000" {
		t.Errorf("listen addr = %s", got)
	}
	if got := cfg.Upstream().String(); got != "https://mcp.internal:8443" {
		t.Errorf("upstream = %s", got)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != LogFormatConsole {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.StringifyIDs || !cfg.StripExclusiveBounds {
		t.Errorf("rewrite toggles = %v/%v", cfg.StringifyIDs, cfg.StripExclusiveBounds)
	}
	if cfg.MaxJSONBodyBytes != 1<<20 {
		t.Errorf("max body = %d", cfg.MaxJSONBodyBytes)
	}
	if cfg.ResponseHeaderTimeout != 5*time.Second {
		t.Errorf("response header timeout = %s", cfg.ResponseHeaderTimeout)
	}
}

func TestUpstreamBracketsIPv6(t *testing.T) {
	cfg := Config{TargetScheme: "http", TargetHost: "::1", TargetPort: 3927}
	if got := cfg.Upstream().String(); got != "http://[::1]:3927" {
		t.Fatalf("upstream = %s", got)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	valid := Config{
		Host:         "0.0.0.0",
		Port:         3928,
		TargetScheme: "http",
		TargetHost:   "localhost",
		TargetPort:   3927,
		LogFormat:    LogFormatJSON,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"listen port zero", func(c *Config) { c.Port = 0 }, "PROXY_PORT"},
		{"target port too high", func(c *Config) { c.TargetPort = 70000 }, "TARGET_PORT"},
		{"empty target host", func(c *Config) { c.TargetHost = " " }, "TARGET_HOST"},
		{"empty listen host", func(c *Config) { c.Host = "" }, "PROXY_HOST"},
		{"bad scheme", func(c *Config) { c.TargetScheme = "ftp" }, "TARGET_SCHEME"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"negative body cap", func(c *Config) { c.MaxJSONBodyBytes = -1 }, "PROXY_MAX_JSON_BODY_BYTES"},
		{"negative header timeout", func(c *Config) { c.ResponseHeaderTimeout = -time.Second }, "PROXY_RESPONSE_HEADER_TIMEOUT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsMalformedPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("TARGET_PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed TARGET_PORT")
	}
}
