// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-core-stack/mcp-compat-proxy/pkg/config"
	"github.com/go-core-stack/mcp-compat-proxy/pkg/proxy"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("mcp compat proxy failed")
	}
}

// newRootCommand builds the CLI. Flags default to the environment so either
// source can configure the proxy.
func newRootCommand() *cobra.Command {
	cfg, envErr := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "mcp-compat-proxy",
		Short: "Reverse proxy that makes MCP server responses acceptable to strict clients",
		Long: "mcp-compat-proxy forwards every request to an upstream MCP server and rewrites\n" +
			"JSON-RPC responses on the way back: ids become strings and exclusiveMinimum /\n" +
			"exclusiveMaximum are removed from tool input schemas.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return envErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := setupLogging(cfg, os.Stderr); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd.Flags(), &cfg)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host (PROXY_HOST)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port (PROXY_PORT)")
	fs.StringVar(&cfg.TargetScheme, "target-scheme", cfg.TargetScheme, "upstream scheme, http or https (TARGET_SCHEME)")
	fs.StringVar(&cfg.TargetHost, "target-host", cfg.TargetHost, "upstream MCP server host (TARGET_HOST)")
	fs.IntVar(&cfg.TargetPort, "target-port", cfg.TargetPort, "upstream MCP server port (TARGET_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error (LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or console (LOG_FORMAT)")
	fs.BoolVar(&cfg.StringifyIDs, "stringify-ids", cfg.StringifyIDs, "rewrite JSON-RPC ids as strings (PROXY_STRINGIFY_IDS)")
	fs.BoolVar(&cfg.StripExclusiveBounds, "strip-exclusive-bounds", cfg.StripExclusiveBounds,
		"remove exclusiveMinimum/exclusiveMaximum from tool input schemas (PROXY_STRIP_EXCLUSIVE_BOUNDS)")
	fs.Int64Var(&cfg.MaxJSONBodyBytes, "max-json-body-bytes", cfg.MaxJSONBodyBytes,
		"largest application/json body to buffer, 0 for no limit (PROXY_MAX_JSON_BODY_BYTES)")
	fs.BoolVar(&cfg.InsecureSkipVerify, "upstream-insecure", cfg.InsecureSkipVerify,
		"skip TLS verification of the upstream (PROXY_UPSTREAM_INSECURE)")
}

// setupLogging configures the global zerolog logger from cfg.
func setupLogging(cfg config.Config, out io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	if cfg.LogFormat == config.LogFormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(level)
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	proxyHandler, err := proxy.New(cfg)
	if err != nil {
		return fmt.Errorf("construct proxy: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           proxyHandler,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
		// No WriteTimeout: event streams stay open as long as the upstream keeps them.
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("listen_addr", cfg.ListenAddr()).
			Str("upstream", cfg.Upstream().String()).
			Bool("stringify_ids", cfg.StringifyIDs).
			Bool("strip_exclusive_bounds", cfg.StripExclusiveBounds).
			Msg("starting MCP compat proxy")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	return waitForShutdown(ctx, server, serveErr, cfg.GracefulShutdownTimeout)
}

func waitForShutdown(ctx context.Context, srv *http.Server, serveErr <-chan error, timeout time.Duration) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			return fmt.Errorf("proxy server exited unexpectedly: %w", err)
		}
		return nil
	case <-stop:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down MCP compat proxy")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	log.Info().Msg("proxy stopped")
	return nil
}
