package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/store"
)

// MediaRepository serves one media kind. Entities are cached by id and
// each account's listing is cached as a whole; any mutation drops the
// owning account's listing.
type MediaRepository struct {
	kind  models.MediaKind
	store store.Store
	cached
	now func() time.Time
}

func (r *MediaRepository) Kind() models.MediaKind { return r.kind }

func (r *MediaRepository) idKey(id string) string {
	return cache.MediaByID(string(r.kind), id)
}

func (r *MediaRepository) listKey(accountID string) string {
	return cache.MediaByAccount(string(r.kind), accountID)
}

func (r *MediaRepository) FindByID(ctx context.Context, id string) (*models.Media, error) {
	var m models.Media
	if r.get(ctx, r.idKey(id), &m) {
		return &m, nil
	}

	found, err := r.store.GetMedia(ctx, r.kind, id)
	if err != nil {
		return nil, translate(err, apperror.ErrMediaNotFound)
	}
	r.set(ctx, r.idKey(id), found, cache.MediaTTL)
	return found, nil
}

func (r *MediaRepository) FindByAccount(ctx context.Context, accountID string) ([]*models.Media, error) {
	var list []*models.Media
	if r.get(ctx, r.listKey(accountID), &list) {
		return list, nil
	}

	list, err := r.store.ListMediaByAccount(ctx, r.kind, accountID)
	if err != nil {
		return nil, err
	}
	r.set(ctx, r.listKey(accountID), list, cache.MediaTTL)
	return list, nil
}

func (r *MediaRepository) FindByFilename(ctx context.Context, accountID, filename string) (*models.Media, error) {
	found, err := r.store.GetMediaByFilename(ctx, r.kind, accountID, filename)
	if err != nil {
		return nil, translate(err, apperror.ErrMediaNotFound)
	}
	r.set(ctx, r.idKey(found.ID), found, cache.MediaTTL)
	return found, nil
}

// FindExpired returns up to limit temporary media past their expiry,
// oldest first. It always reads the store.
func (r *MediaRepository) FindExpired(ctx context.Context, limit int) ([]*models.Media, error) {
	return r.store.ListExpiredMedia(ctx, r.kind, r.now(), limit)
}

func (r *MediaRepository) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	m.Kind = r.kind
	created, err := r.store.CreateMedia(ctx, m)
	if err != nil {
		return nil, translate(err, apperror.ErrMediaNotFound)
	}
	r.set(ctx, r.idKey(created.ID), created, cache.MediaTTL)
	r.del(ctx, r.listKey(created.AccountID))
	return created, nil
}

func (r *MediaRepository) Save(ctx context.Context, m *models.Media) (*models.Media, error) {
	m.Kind = r.kind
	saved, err := r.store.UpdateMedia(ctx, m)
	if err != nil {
		return nil, translate(err, apperror.ErrMediaNotFound)
	}
	r.set(ctx, r.idKey(saved.ID), saved, cache.MediaTTL)
	r.del(ctx, r.listKey(saved.AccountID))
	return saved, nil
}

// Delete hard-deletes the media row. It reports false when absent.
func (r *MediaRepository) Delete(ctx context.Context, id string) (bool, error) {
	m, err := r.store.GetMedia(ctx, r.kind, id)
	if errors.Is(err, store.ErrNotFound) {
		r.del(ctx, r.idKey(id))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := r.store.DeleteMedia(ctx, r.kind, id)
	if err != nil {
		return false, err
	}
	r.del(ctx, r.idKey(id), r.listKey(m.AccountID))
	return ok, nil
}

// DeleteExpired deletes the media only if it is still temporary and
// expired. It reports false when the row is gone or was confirmed.
func (r *MediaRepository) DeleteExpired(ctx context.Context, m *models.Media) (bool, error) {
	ok, err := r.store.DeleteExpiredMedia(ctx, r.kind, m.ID, r.now())
	if err != nil {
		return false, err
	}
	r.del(ctx, r.idKey(m.ID), r.listKey(m.AccountID))
	return ok, nil
}
