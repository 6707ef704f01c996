package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/store"
	"github.com/jonymoraes/mediaserver/internal/timeutil"
)

// QuotaRepository caches quotas by id and by (account, period).
type QuotaRepository struct {
	store store.Store
	cached
	now func() time.Time
}

func quotaKeys(q *models.Quota) []string {
	return []string{cache.QuotaByID(q.ID), cache.QuotaByAccount(q.AccountID, q.Period)}
}

func (r *QuotaRepository) populate(ctx context.Context, q *models.Quota) {
	for _, k := range quotaKeys(q) {
		r.set(ctx, k, q, cache.QuotaTTL)
	}
}

func (r *QuotaRepository) FindByID(ctx context.Context, id string) (*models.Quota, error) {
	var q models.Quota
	if r.get(ctx, cache.QuotaByID(id), &q) {
		return &q, nil
	}

	found, err := r.store.GetQuota(ctx, id)
	if err != nil {
		return nil, translate(err, apperror.ErrQuotaNotFound)
	}
	r.populate(ctx, found)
	return found, nil
}

// FindCurrent returns the account's quota for the current UTC month,
// creating it with zero counters when absent. Concurrent first calls
// resolve to the same row.
func (r *QuotaRepository) FindCurrent(ctx context.Context, accountID string) (*models.Quota, error) {
	period := timeutil.Period(r.now())

	var q models.Quota
	if r.get(ctx, cache.QuotaByAccount(accountID, period), &q) {
		return &q, nil
	}

	found, err := r.store.EnsureQuota(ctx, accountID, period)
	if err != nil {
		return nil, translate(err, apperror.ErrAccountNotFound)
	}
	r.populate(ctx, found)
	return found, nil
}

// Create opens the current-period quota for a new account.
func (r *QuotaRepository) Create(ctx context.Context, accountID string) (*models.Quota, error) {
	return r.FindCurrent(ctx, accountID)
}

func (r *QuotaRepository) Save(ctx context.Context, q *models.Quota) (*models.Quota, error) {
	saved, err := r.store.UpdateQuota(ctx, q)
	if err != nil {
		return nil, translate(err, apperror.ErrQuotaNotFound)
	}
	r.populate(ctx, saved)
	return saved, nil
}

func (r *QuotaRepository) Delete(ctx context.Context, id string) (bool, error) {
	q, err := r.store.GetQuota(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := r.store.DeleteQuota(ctx, id)
	if err != nil {
		return false, err
	}
	r.Invalidate(ctx, q)
	return ok, nil
}

// Invalidate drops both cache keys of q.
func (r *QuotaRepository) Invalidate(ctx context.Context, q *models.Quota) {
	r.del(ctx, quotaKeys(q)...)
}
