// Package app opens the connections shared by the binaries and builds the
// data-access layers on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
	"github.com/jonymoraes/mediaserver/internal/store"
)

// App holds the shared connections. Events fans out to the Redis publisher
// and, when WEBHOOK_URL is set, the outbound webhook.
type App struct {
	Config *config.Config

	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Storage storage.Storage

	Store     *store.Postgres
	Repos     *repository.Repositories
	Ledger    *ledger.Ledger
	Publisher *notifier.RedisPublisher
	Events    notifier.Notifier
	ImageJobs *jobrecord.Store
	VideoJobs *jobrecord.Store
}

// Open connects to Postgres, Redis and the configured storage backend.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("redis connected")

	backend, err := openStorage(cfg)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}
	log.Info("storage ready", "backend", cfg.StorageBackend)

	st := store.NewPostgres(pool)
	repos := repository.New(st, cache.NewRedis(redisClient))
	publisher := notifier.NewRedisPublisher(redisClient, notifier.DefaultChannel)
	var events notifier.Notifier = publisher
	if cfg.WebhookURL != "" {
		events = notifier.Multi{publisher, notifier.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, nil)}
		log.Info("webhook notifications enabled")
	}
	return &App{
		Config:    cfg,
		Pool:      pool,
		Redis:     redisClient,
		Storage:   metrics.NewInstrumentedStorage(backend),
		Store:     st,
		Repos:     repos,
		Ledger:    ledger.New(st, repos),
		Publisher: publisher,
		Events:    events,
		ImageJobs: jobrecord.NewRedis(redisClient, models.KindImage),
		VideoJobs: jobrecord.NewRedis(redisClient, models.KindVideo),
	}, nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		s, err := storage.NewMinIOStorage(&storage.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewLocalStorage(cfg.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		return s, nil
	}
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		logger.Default().Warn("failed to close redis", "error", err)
	}
	a.Pool.Close()
}
