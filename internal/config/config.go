package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonymoraes/mediaserver/internal/timeutil"
)

const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

type Config struct {
	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	StorageBackend string
	StorageRoot    string
	PublicBaseURL  string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIORegion    string

	WorkerConcurrency int
	ImageJobTimeout   time.Duration
	VideoJobTimeout   time.Duration
	MediaTTL          string

	SweepInterval  time.Duration
	SweepBatchSize int

	FFmpegPath  string
	FFprobePath string

	ProfilesFile string

	WebhookURL    string
	WebhookSecret string

	MetricsPort  int
	OTLPEndpoint string
	SentryDSN    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.StorageBackend = getEnvString("STORAGE_BACKEND", StorageLocal)
	cfg.StorageRoot = getEnvString("STORAGE_ROOT", "public")
	cfg.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", "http://localhost:8080/static")

	cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "media")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.MinIORegion = getEnvString("MINIO_REGION", "us-east-1")

	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 4)
	cfg.ImageJobTimeout, err = getEnvDuration("IMAGE_JOB_TIMEOUT", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_JOB_TIMEOUT: %w", err)
	}
	cfg.VideoJobTimeout, err = getEnvDuration("VIDEO_JOB_TIMEOUT", "90m")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_JOB_TIMEOUT: %w", err)
	}
	cfg.MediaTTL = getEnvString("MEDIA_TTL", "1d")

	cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", "3h")
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepBatchSize = getEnvInt("SWEEP_BATCH_SIZE", 100)

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")

	cfg.ProfilesFile = os.Getenv("MEDIA_PROFILES_FILE")

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("invalid worker concurrency: %d", c.WorkerConcurrency)
	}

	if c.SweepBatchSize < 1 {
		return fmt.Errorf("invalid sweep batch size: %d", c.SweepBatchSize)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", c.SweepInterval)
	}

	if _, err := timeutil.ParseDuration(c.MediaTTL); err != nil {
		return fmt.Errorf("invalid MEDIA_TTL: %w", err)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}

	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid WEBHOOK_URL: %q", c.WebhookURL)
		}
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return fmt.Errorf("minio storage requires MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.StorageBackend)
	}

	return nil
}
