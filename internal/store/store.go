// Package store is the authoritative persistence layer for accounts, quotas
// and media. Counter mutations are expressed as single atomic statements so
// concurrent workers never lose updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jonymoraes/mediaserver/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record violates a unique constraint")
)

type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByDomain(ctx context.Context, domain string) (*models.Account, error)
	GetAccountByFolder(ctx context.Context, folder string) (*models.Account, error)
	GetAccountByAPIKey(ctx context.Context, apikey string) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) (bool, error)
	// AddUsedBytes atomically adds delta to used_bytes, clamping at zero, and
	// returns the new value.
	AddUsedBytes(ctx context.Context, accountID string, delta int64) (int64, error)
}

type QuotaStore interface {
	GetQuota(ctx context.Context, id string) (*models.Quota, error)
	GetQuotaByPeriod(ctx context.Context, accountID, period string) (*models.Quota, error)
	// EnsureQuota returns the quota for (accountID, period), creating it with
	// zero counters when absent. Concurrent callers observe the same row.
	EnsureQuota(ctx context.Context, accountID, period string) (*models.Quota, error)
	UpdateQuota(ctx context.Context, q *models.Quota) (*models.Quota, error)
	DeleteQuota(ctx context.Context, id string) (bool, error)
	AddTransferredBytes(ctx context.Context, quotaID string, delta int64) (*models.Quota, error)
	IncrementRequests(ctx context.Context, quotaID string) (*models.Quota, error)
}

type MediaStore interface {
	GetMedia(ctx context.Context, kind models.MediaKind, id string) (*models.Media, error)
	GetMediaByFilename(ctx context.Context, kind models.MediaKind, accountID, filename string) (*models.Media, error)
	ListMediaByAccount(ctx context.Context, kind models.MediaKind, accountID string) ([]*models.Media, error)
	// ListExpiredMedia returns temporary media whose expiry is before now,
	// oldest first.
	ListExpiredMedia(ctx context.Context, kind models.MediaKind, now time.Time, limit int) ([]*models.Media, error)
	CreateMedia(ctx context.Context, m *models.Media) (*models.Media, error)
	UpdateMedia(ctx context.Context, m *models.Media) (*models.Media, error)
	DeleteMedia(ctx context.Context, kind models.MediaKind, id string) (bool, error)
	// DeleteExpiredMedia deletes the row only while it is still temporary
	// and past its expiry at now. A row confirmed in the meantime is kept
	// and false is returned.
	DeleteExpiredMedia(ctx context.Context, kind models.MediaKind, id string, now time.Time) (bool, error)
}

type Store interface {
	AccountStore
	QuotaStore
	MediaStore
}
