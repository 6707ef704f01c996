// Package alerting reports worker failures to Sentry. Until Init is called
// with a DSN every function is a no-op.
package alerting

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jonymoraes/mediaserver/internal/logger"
)

var enabled atomic.Bool

type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Init configures the Sentry client. An empty DSN leaves reporting off.
func Init(cfg Config) error {
	if cfg.DSN == "" {
		enabled.Store(false)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)
	return nil
}

func Enabled() bool { return enabled.Load() }

// Capture sends err with tags. The job and account ids carried by ctx are
// attached when present.
func Capture(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if id := logger.JobID(ctx); id != "" {
			scope.SetTag("job_id", id)
		}
		if id := logger.AccountID(ctx); id != "" {
			scope.SetTag("account_id", id)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events.
func Flush(timeout time.Duration) bool {
	if !enabled.Load() {
		return true
	}
	return sentry.Flush(timeout)
}
