// Package media handles client actions on processed media: confirming a
// temporary upload and deleting one.
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
)

type Service struct {
	repos    *repository.Repositories
	ledger   *ledger.Ledger
	storage  storage.Storage
	notifier notifier.Notifier
}

func NewService(repos *repository.Repositories, l *ledger.Ledger, st storage.Storage, n notifier.Notifier) *Service {
	if n == nil {
		n = notifier.Nop{}
	}
	return &Service{repos: repos, ledger: l, storage: st, notifier: n}
}

func (s *Service) lookup(ctx context.Context, accountID string, kind models.MediaKind, filename string) (*models.Account, *repository.MediaRepository, *models.Media, error) {
	repo := s.repos.Media(kind)
	if repo == nil {
		return nil, nil, nil, apperror.Invalid("unknown media kind " + string(kind))
	}
	if filename == "" {
		return nil, nil, nil, apperror.ErrMediaNotFound
	}
	a, err := s.repos.Accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := repo.FindByFilename(ctx, a.ID, filename)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, repo, m, nil
}

// Confirm makes a temporary media permanent so the sweeper leaves it alone.
// Confirming an active media is a no-op.
func (s *Service) Confirm(ctx context.Context, accountID string, kind models.MediaKind, filename string) (*models.Media, error) {
	_, repo, m, err := s.lookup(ctx, accountID, kind, filename)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MediaActive && m.ExpiresAt == nil {
		return m, nil
	}
	m.Status = models.MediaActive
	m.ExpiresAt = nil
	saved, err := repo.Save(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("confirm media: %w", err)
	}
	logger.FromContext(ctx).Info("media confirmed", "account_id", accountID, "kind", kind, "filename", filename)
	return saved, nil
}

// Delete removes the published file, deletes the row and releases its
// bytes from the account. Only the caller whose delete removed the row
// releases the bytes.
func (s *Service) Delete(ctx context.Context, accountID string, kind models.MediaKind, filename string) error {
	a, repo, m, err := s.lookup(ctx, accountID, kind, filename)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, storage.Key(a.Folder, m.Filename)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete media file: %w", err)
	}

	ok, err := repo.Delete(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if !ok {
		return apperror.ErrMediaNotFound
	}

	used, err := s.ledger.ChargeStorage(ctx, a.ID, -m.Filesize)
	if err != nil {
		return fmt.Errorf("release media bytes: %w", err)
	}
	a.UsedBytes = used

	q, err := s.repos.Quotas.FindCurrent(ctx, a.ID)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to load quota for update event", "account_id", a.ID, "error", err)
		q = nil
	}
	if err := s.notifier.Publish(ctx, notifier.QuotaUpdated(a, q)); err != nil {
		logger.FromContext(ctx).Warn("failed to publish quota update", "account_id", a.ID, "error", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, accountID string, kind models.MediaKind) ([]*models.Media, error) {
	repo := s.repos.Media(kind)
	if repo == nil {
		return nil, apperror.Invalid("unknown media kind " + string(kind))
	}
	return repo.FindByAccount(ctx, accountID)
}
