package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yemishi/chatteroo-server/internal/app"
	"github.com/yemishi/chatteroo-server/internal/config"
	chatlog "github.com/yemishi/chatteroo-server/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:          "chatteroo",
		Short:        "Real-time presence and message relay for chatteroo",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml (default: ./config.yaml)")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.IntVar(&overrides.SendBuffer, "send-buffer", 0, "per-connection outbound queue size")
	flags.IntVar(&overrides.RateLimitPerMinute, "rate-limit", 0, "inbound events per minute per connection")
	flags.StringSliceVar(&overrides.AllowedOrigins, "allowed-origins", nil, "websocket origin patterns")

	return cmd
}

func serve(parent context.Context, configPath string, overrides config.Config) error {
	bootLogger := chatlog.New("info", "console")

	cfg, resolved, err := config.Load(bootLogger, configPath)
	if err != nil {
		bootLogger.Error().Err(err).Str("path", resolved).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(overrides)

	logger := chatlog.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("config", resolved).Msg("starting chatteroo server")
	start := time.Now()
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Dur("uptime", time.Since(start)).Msg("server stopped")
	return nil
}
