// Package ledger applies storage and bandwidth charges. Every counter change
// is a single atomic statement in the store; cached snapshots are never read
// and are dropped after the write so the next lookup sees the new value.
package ledger

import (
	"context"
	"errors"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/store"
)

const (
	counterUsedBytes        = "used_bytes"
	counterTransferredBytes = "transferred_bytes"
)

type Ledger struct {
	store    store.Store
	accounts *repository.AccountRepository
	quotas   *repository.QuotaRepository
}

func New(st store.Store, repos *repository.Repositories) *Ledger {
	return &Ledger{
		store:    st,
		accounts: repos.Accounts,
		quotas:   repos.Quotas,
	}
}

// ChargeStorage adds delta (negative to release) to the account's used
// bytes, clamping at zero, and returns the new total.
func (l *Ledger) ChargeStorage(ctx context.Context, accountID string, delta int64) (int64, error) {
	used, err := l.store.AddUsedBytes(ctx, accountID, delta)
	if err != nil {
		return 0, notFound(err, apperror.ErrAccountNotFound)
	}
	metrics.RecordLedgerCharge(counterUsedBytes, delta)

	if err := l.accounts.Invalidate(ctx, accountID); err != nil {
		logger.FromContext(ctx).Warn("account cache invalidation failed",
			"account_id", accountID, "error", err)
	}
	return used, nil
}

// ChargeTransfer adds delta to the quota's transferred bytes.
func (l *Ledger) ChargeTransfer(ctx context.Context, quotaID string, delta int64) (*models.Quota, error) {
	q, err := l.store.AddTransferredBytes(ctx, quotaID, delta)
	if err != nil {
		return nil, notFound(err, apperror.ErrQuotaNotFound)
	}
	metrics.RecordLedgerCharge(counterTransferredBytes, delta)
	l.quotas.Invalidate(ctx, q)
	return q, nil
}

// ChargeTransferCurrent charges the account's current-period quota,
// creating it first if needed.
func (l *Ledger) ChargeTransferCurrent(ctx context.Context, accountID string, delta int64) (*models.Quota, error) {
	q, err := l.quotas.FindCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return l.ChargeTransfer(ctx, q.ID, delta)
}

// IncrementRequestCount counts one request against the account's
// current-period quota.
func (l *Ledger) IncrementRequestCount(ctx context.Context, accountID string) (*models.Quota, error) {
	q, err := l.quotas.FindCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updated, err := l.store.IncrementRequests(ctx, q.ID)
	if err != nil {
		return nil, notFound(err, apperror.ErrQuotaNotFound)
	}
	metrics.RecordLedgerRequest()
	l.quotas.Invalidate(ctx, updated)
	return updated, nil
}

func notFound(err error, target *apperror.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.Wrap(err, target)
	}
	return err
}
