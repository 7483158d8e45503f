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

// Worker process entrypoint.
// Data flow:
// 1) Parse flags and load config.
// 2) Build app wiring.
// 3) Relay the outbox and keep result snapshots current until SIGINT/SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts bootstrap.Options
	var logLevel string

	flagSet := pflag.NewFlagSet("pollwarden-worker", pflag.ContinueOnError)
	flagSet.StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load before reading the environment (default: .env if present)")
	flagSet.BoolVar(&opts.AutoMigrate, "auto-migrate", false, "create or update the postgres schema on startup")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	app, err := bootstrap.BuildWorker(opts)
	if err != nil {
		return fmt.Errorf("bootstrap worker: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("worker shutdown close failed", "event", "worker_close_failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
