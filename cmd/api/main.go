package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"pollwarden/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Parse flags and load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Serve HTTP until SIGINT/SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts bootstrap.Options
	var logLevel string

	flagSet := pflag.NewFlagSet("pollwarden-api", pflag.ContinueOnError)
	flagSet.StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load before reading the environment (default: .env if present)")
	flagSet.BoolVar(&opts.AutoMigrate, "auto-migrate", false, "create or update the postgres schema on startup")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if err := configureLogging(logLevel); err != nil {
		return err
	}

	app, err := bootstrap.BuildAPI(opts)
	if err != nil {
		return fmt.Errorf("bootstrap api: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("api shutdown close failed", "event", "api_close_failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

func configureLogging(level string) error {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})))
	return nil
}
