package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonymoraes/mediaserver/internal/alerting"
	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/sweeper"
	"github.com/jonymoraes/mediaserver/internal/tracing"
)

const version = "1.0.0"

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		slog.Error("sweeper failed", "error", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := alerting.Init(alerting.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment, Release: version}); err != nil {
		log.Warn("error reporting disabled", "error", err)
	}
	defer alerting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "media-sweeper",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.SetAppInfo(version, cfg.Environment, "sweeper")

	s := sweeper.New(sweeper.Dependencies{
		Repos:     a.Repos,
		Ledger:    a.Ledger,
		Storage:   a.Storage,
		Notifier:  a.Events,
		BatchSize: cfg.SweepBatchSize,
	})

	if once {
		start := time.Now()
		stats, err := s.Run(ctx)
		if err != nil {
			alerting.Capture(ctx, err, map[string]string{"component": "sweeper"})
			return fmt.Errorf("sweep failed: %w", err)
		}
		log.Info("sweep completed",
			"duration_ms", time.Since(start).Milliseconds(),
			"deleted", stats.Deleted,
			"reclaimed_bytes", stats.ReclaimedBytes,
		)
		return nil
	}

	log.Info("sweeper started", "interval", cfg.SweepInterval)
	s.Start(ctx, cfg.SweepInterval)
	log.Info("sweeper stopped")
	return nil
}
