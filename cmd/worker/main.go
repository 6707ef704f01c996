package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jonymoraes/mediaserver/internal/alerting"
	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/health"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/processor/image"
	"github.com/jonymoraes/mediaserver/internal/tracing"
	mediaworker "github.com/jonymoraes/mediaserver/internal/worker"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()
	log.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := alerting.Init(alerting.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment, Release: version}); err != nil {
		log.Warn("error reporting disabled", "error", err)
	}
	defer alerting.Flush(2 * time.Second)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "media-worker",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return err
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	b := broker.NewRedisStreamsBroker(a.Redis,
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	metrics.SetAppInfo(version, cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.WorkerConcurrency)

	images := image.New(profiles.ImageContexts)
	videos := openVideoProcessor(cfg, profiles, log)

	deps := &mediaworker.Dependencies{
		Repos:         a.Repos,
		Ledger:        a.Ledger,
		Storage:       a.Storage,
		Notifier:      a.Events,
		ImageJobs:     a.ImageJobs,
		VideoJobs:     a.VideoJobs,
		Images:        images,
		PublicBaseURL: cfg.PublicBaseURL,
		MediaTTL:      cfg.MediaTTL,
		ImageTimeout:  cfg.ImageJobTimeout,
		VideoTimeout:  cfg.VideoJobTimeout,
	}
	if videos != nil {
		deps.Videos = videos
	}
	deps.Validator = mediaworker.NewValidator(deps.Images, deps.Videos)

	log.Info("registering job handlers")
	registry := worker.NewRegistry()
	if err := registry.Register(mediaworker.TypeImage, mediaworker.ImageHandler(deps)); err != nil {
		return fmt.Errorf("failed to register image handler: %w", err)
	}
	if err := registerVideoHandler(registry, deps); err != nil {
		return err
	}
	log.Info("handlers registered", "types", registry.Types())

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(jobTimeout(cfg)),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	log.Info("creating worker pool", "concurrency", cfg.WorkerConcurrency)
	workerPool := worker.NewPool(b, registry,
		worker.WithConcurrency(cfg.WorkerConcurrency),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithPoolPollInterval(time.Second),
		worker.WithShutdownTimeout(30*time.Second),
		worker.WithPoolLogger(zerologger),
	)

	checker := health.NewChecker().
		WithDatabase(a.Pool).
		WithRedis(a.Redis).
		WithStorage(a.Storage)

	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", promhttp.Handler())
	opsMux.HandleFunc("/livez", health.LivenessHandler())
	opsMux.HandleFunc("/health", health.ReadinessHandler(checker))

	opsServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.MetricsPort),
		Handler:           tracing.HTTPMiddleware("media-worker-ops")(opsMux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("ops server starting", "port", cfg.MetricsPort)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- workerPool.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := workerPool.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping ops server", "error", err)
		}
		cancel()
	}

	log.Info("worker pool stopped gracefully")
	return nil
}

// jobTimeout is the outer bound applied by the queue; the handlers enforce
// the per-kind limits inside it.
func jobTimeout(cfg *config.Config) time.Duration {
	d := cfg.ImageJobTimeout
	if cfg.VideoJobTimeout > d {
		d = cfg.VideoJobTimeout
	}
	return d + time.Minute
}
