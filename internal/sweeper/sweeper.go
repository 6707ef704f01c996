// Package sweeper reclaims temporary media that were never confirmed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
	"github.com/jonymoraes/mediaserver/internal/tracing"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = 3 * time.Hour
)

type Dependencies struct {
	Repos    *repository.Repositories
	Ledger   *ledger.Ledger
	Storage  storage.Storage
	Notifier notifier.Notifier
	// BatchSize bounds each FindExpired call. Zero means DefaultBatchSize.
	BatchSize int
}

type Stats struct {
	Deleted        int
	ReclaimedBytes int64
	StorageErrors  int
	DatabaseErrors int
	LedgerErrors   int
}

func (s *Stats) add(o Stats) {
	s.Deleted += o.Deleted
	s.ReclaimedBytes += o.ReclaimedBytes
	s.StorageErrors += o.StorageErrors
	s.DatabaseErrors += o.DatabaseErrors
	s.LedgerErrors += o.LedgerErrors
}

type Sweeper struct {
	deps Dependencies
}

func New(deps Dependencies) *Sweeper {
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}
	return &Sweeper{deps: deps}
}

// Run sweeps expired images and videos until no expired media remain or a
// batch makes no progress. A failing item never stops the others.
func (s *Sweeper) Run(ctx context.Context) (*Stats, error) {
	ctx, span := tracing.StartSweepSpan(ctx)
	defer span.End()

	log := logger.FromContext(ctx)
	log.Info("starting expiration sweep")
	start := time.Now()

	total := &Stats{}
	var errs []error
	for _, repo := range []*repository.MediaRepository{s.deps.Repos.Images, s.deps.Repos.Videos} {
		stats, err := s.sweepKind(ctx, repo)
		total.add(stats)
		if err != nil {
			log.Error("failed to sweep expired media", "kind", repo.Kind(), "error", err)
			errs = append(errs, err)
		}
	}

	metrics.RecordSweeperRun(time.Since(start).Seconds())
	log.Info("expiration sweep completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"deleted", total.Deleted,
		"reclaimed_bytes", total.ReclaimedBytes,
		"storage_errors", total.StorageErrors,
		"database_errors", total.DatabaseErrors,
		"ledger_errors", total.LedgerErrors,
	)

	err := errors.Join(errs...)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return total, err
}

func (s *Sweeper) sweepKind(ctx context.Context, repo *repository.MediaRepository) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := repo.FindExpired(ctx, s.deps.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("list expired %s media: %w", repo.Kind(), err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		before := stats.Deleted
		for _, m := range batch {
			s.sweepOne(ctx, repo, m, &stats)
		}
		logger.FromContext(ctx).Debug("swept batch",
			"kind", repo.Kind(), "batch", len(batch), "deleted_total", stats.Deleted)

		if stats.Deleted == before {
			// Every row in the batch failed; the next call would return them again.
			return stats, nil
		}
		if len(batch) < s.deps.BatchSize {
			return stats, nil
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, repo *repository.MediaRepository, m *models.Media, stats *Stats) {
	kind := string(repo.Kind())
	log := logger.FromContext(ctx).With("media_id", m.ID, "kind", kind, "account_id", m.AccountID)

	account, err := s.deps.Repos.Accounts.FindByID(ctx, m.AccountID)
	if err != nil && !apperror.Is(err, apperror.ErrNotFound) {
		log.Warn("failed to load media owner", "error", err)
		stats.DatabaseErrors++
		metrics.RecordSweeperDeletion(kind, "error")
		return
	}

	ok, err := repo.DeleteExpired(ctx, m)
	if err != nil {
		log.Warn("failed to delete expired media", "error", err)
		stats.DatabaseErrors++
		metrics.RecordSweeperDeletion(kind, "error")
		return
	}
	if !ok {
		// Confirmed or deleted since the batch was read.
		metrics.RecordSweeperDeletion(kind, "skipped")
		return
	}

	if account != nil {
		key := storage.Key(account.Folder, m.Filename)
		if err := s.deps.Storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Warn("failed to delete file from storage", "storage_key", key, "error", err)
			stats.StorageErrors++
		}
	}

	stats.Deleted++
	stats.ReclaimedBytes += m.Filesize
	metrics.RecordSweeperDeletion(kind, "success")

	if account == nil {
		return
	}
	used, err := s.deps.Ledger.ChargeStorage(ctx, account.ID, -m.Filesize)
	if err != nil {
		log.Warn("failed to release storage", "filesize", m.Filesize, "error", err)
		stats.LedgerErrors++
		return
	}
	account.UsedBytes = used
	s.publishQuota(ctx, account, m.QuotaID)
}

func (s *Sweeper) publishQuota(ctx context.Context, account *models.Account, quotaID *string) {
	var q *models.Quota
	if quotaID != nil {
		found, err := s.deps.Repos.Quotas.FindByID(ctx, *quotaID)
		if err == nil {
			q = found
		}
	}
	if err := s.deps.Notifier.Publish(ctx, notifier.QuotaUpdated(account, q)); err != nil {
		logger.FromContext(ctx).Warn("failed to publish quota update", "account_id", account.ID, "error", err)
	}
}

// Start runs a sweep immediately and then every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("expiration sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
