// Package repository layers a read-through cache over the store. Every
// mutation goes to the store first and then invalidates or rewrites the
// cache keys derived from the entity. Cache failures never fail a call: a
// read error falls through to the store and a write error is logged.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/store"
)

// Repositories bundles one repository per entity over a shared store and
// cache.
type Repositories struct {
	Accounts *AccountRepository
	Quotas   *QuotaRepository
	Images   *MediaRepository
	Videos   *MediaRepository
}

func New(st store.Store, c cache.Cache) *Repositories {
	cc := cached{cache: c}
	return &Repositories{
		Accounts: &AccountRepository{store: st, cached: cc},
		Quotas:   &QuotaRepository{store: st, cached: cc, now: time.Now},
		Images:   &MediaRepository{kind: models.KindImage, store: st, cached: cc, now: time.Now},
		Videos:   &MediaRepository{kind: models.KindVideo, store: st, cached: cc, now: time.Now},
	}
}

// Media returns the repository for kind, or nil for an unknown kind.
func (r *Repositories) Media(kind models.MediaKind) *MediaRepository {
	switch kind {
	case models.KindImage:
		return r.Images
	case models.KindVideo:
		return r.Videos
	}
	return nil
}

type cached struct {
	cache cache.Cache
}

// get reports whether key was served from the cache.
func (c cached) get(ctx context.Context, key string, dst any) bool {
	err := c.cache.Get(ctx, key, dst)
	switch {
	case err == nil:
		metrics.RecordCacheLookup(true)
		return true
	case errors.Is(err, cache.ErrMiss):
		metrics.RecordCacheLookup(false)
	default:
		metrics.RecordCacheError("get")
		logger.FromContext(ctx).Warn("cache read failed, using store", "key", key, "error", err)
	}
	return false
}

func (c cached) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		metrics.RecordCacheError("set")
		logger.FromContext(ctx).Warn("cache write failed", "key", key, "error", err)
	}
}

func (c cached) del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		metrics.RecordCacheError("delete")
		logger.FromContext(ctx).Warn("cache delete failed", "keys", keys, "error", err)
	}
}

func (c cached) delPrefix(ctx context.Context, prefix string) {
	if _, err := c.cache.DeleteByPrefix(ctx, prefix); err != nil {
		metrics.RecordCacheError("delete")
		logger.FromContext(ctx).Warn("cache prefix delete failed", "prefix", prefix, "error", err)
	}
}

// translate maps store sentinels onto application errors.
func translate(err error, notFound *apperror.Error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperror.Wrap(err, notFound)
	case errors.Is(err, store.ErrDuplicate):
		return apperror.Wrap(err, apperror.ErrAlreadyExists)
	}
	return err
}
