package repository

import (
	"context"
	"errors"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/store"
)

// AccountRepository caches accounts under four index keys: id, domain,
// folder and api key. Each key holds the full entity.
type AccountRepository struct {
	store store.Store
	cached
}

func accountKeys(a *models.Account) []string {
	keys := []string{cache.AccountByID(a.ID)}
	if d := a.DomainValue(); d != "" {
		keys = append(keys, cache.AccountByDomain(d))
	}
	if a.Folder != "" {
		keys = append(keys, cache.AccountByFolder(a.Folder))
	}
	if a.APIKey != "" {
		keys = append(keys, cache.AccountByAPIKey(a.APIKey))
	}
	return keys
}

func (r *AccountRepository) populate(ctx context.Context, a *models.Account) {
	for _, k := range accountKeys(a) {
		r.set(ctx, k, a, cache.AccountTTL)
	}
}

func (r *AccountRepository) find(ctx context.Context, key string, load func(context.Context) (*models.Account, error)) (*models.Account, error) {
	var a models.Account
	if r.get(ctx, key, &a) {
		return &a, nil
	}

	found, err := load(ctx)
	if err != nil {
		return nil, translate(err, apperror.ErrAccountNotFound)
	}
	r.populate(ctx, found)
	return found, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.find(ctx, cache.AccountByID(id), func(ctx context.Context) (*models.Account, error) {
		return r.store.GetAccount(ctx, id)
	})
}

func (r *AccountRepository) FindByDomain(ctx context.Context, domain string) (*models.Account, error) {
	return r.find(ctx, cache.AccountByDomain(domain), func(ctx context.Context) (*models.Account, error) {
		return r.store.GetAccountByDomain(ctx, domain)
	})
}

func (r *AccountRepository) FindByFolder(ctx context.Context, folder string) (*models.Account, error) {
	return r.find(ctx, cache.AccountByFolder(folder), func(ctx context.Context) (*models.Account, error) {
		return r.store.GetAccountByFolder(ctx, folder)
	})
}

func (r *AccountRepository) FindByAPIKey(ctx context.Context, apikey string) (*models.Account, error) {
	return r.find(ctx, cache.AccountByAPIKey(apikey), func(ctx context.Context) (*models.Account, error) {
		return r.store.GetAccountByAPIKey(ctx, apikey)
	})
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	created, err := r.store.CreateAccount(ctx, a)
	if err != nil {
		return nil, translate(err, apperror.ErrAccountNotFound)
	}
	r.populate(ctx, created)
	return created, nil
}

// Save persists a and moves its cache entries: keys of fields that changed
// since the stored snapshot are removed before the fresh entries are
// written.
func (r *AccountRepository) Save(ctx context.Context, a *models.Account) (*models.Account, error) {
	prior, err := r.store.GetAccount(ctx, a.ID)
	if err != nil {
		return nil, translate(err, apperror.ErrAccountNotFound)
	}

	saved, err := r.store.UpdateAccount(ctx, a)
	if err != nil {
		return nil, translate(err, apperror.ErrAccountNotFound)
	}

	var stale []string
	if d := prior.DomainValue(); d != "" && d != saved.DomainValue() {
		stale = append(stale, cache.AccountByDomain(d))
	}
	if prior.Folder != "" && prior.Folder != saved.Folder {
		stale = append(stale, cache.AccountByFolder(prior.Folder))
	}
	if prior.APIKey != "" && prior.APIKey != saved.APIKey {
		stale = append(stale, cache.AccountByAPIKey(prior.APIKey))
	}
	r.del(ctx, stale...)
	r.populate(ctx, saved)
	return saved, nil
}

// Delete removes the account and every cache entry derived from it,
// including its quotas, media listings and the media rows the delete
// cascades to. It reports false when the account does not exist.
func (r *AccountRepository) Delete(ctx context.Context, id string) (bool, error) {
	a, err := r.store.GetAccount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Listed before the delete; the rows are gone afterwards.
	mediaKeys := []string{
		cache.MediaByAccount(string(models.KindImage), id),
		cache.MediaByAccount(string(models.KindVideo), id),
	}
	for _, kind := range []models.MediaKind{models.KindImage, models.KindVideo} {
		media, err := r.store.ListMediaByAccount(ctx, kind, id)
		if err != nil {
			return false, err
		}
		for _, m := range media {
			mediaKeys = append(mediaKeys, cache.MediaByID(string(kind), m.ID))
		}
	}

	ok, err := r.store.DeleteAccount(ctx, id)
	if err != nil {
		return false, err
	}

	r.del(ctx, accountKeys(a)...)
	r.del(ctx, mediaKeys...)
	r.delPrefix(ctx, cache.QuotaByAccount(id, ""))
	return ok, nil
}

// Invalidate drops every cached index of the account. The stored row is
// read to learn the current index values; when it is gone only the id key
// is dropped.
func (r *AccountRepository) Invalidate(ctx context.Context, id string) error {
	a, err := r.store.GetAccount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		r.del(ctx, cache.AccountByID(id))
		return nil
	}
	if err != nil {
		return err
	}
	r.del(ctx, accountKeys(a)...)
	return nil
}
