// Command marketscan backfills the market database from the chain's
// historical event log and optionally serves the read-only HTTP API. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and runs the configured mode. The exit code is non-zero only for setup
// errors; per-chunk and per-event scan failures are logged and skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/marketscan/internal/app"
	"github.com/alanyoungcy/marketscan/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	fromBlock := flag.Uint64("from", 0, "start block (overrides chain.scan_from_block)")
	toBlock := flag.Uint64("to", 0, "end block, 0 means latest (overrides chain.scan_to_block)")
	resume := flag.Bool("resume", false, "resume from the stored checkpoint")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Flags override file and environment settings.
	if isFlagSet("from") {
		cfg.Chain.ScanFromBlock = *fromBlock
	}
	if isFlagSet("to") {
		cfg.Chain.ScanToBlock = *toBlock
	}
	if *resume {
		cfg.Chain.Resume = true
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("market scanner starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("market scanner stopped")
}

// isFlagSet reports whether the named flag was passed on the command line.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
