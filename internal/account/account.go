// Package account manages tenant accounts together with their storage
// folders and first quota.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/naming"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
)

const apiKeyBytes = 32

type CreateInput struct {
	Name   string `validate:"required,max=255"`
	Domain string `validate:"required,max=255"`
}

type UpdateInput struct {
	Name   *string `validate:"omitempty,min=1,max=255"`
	Domain *string `validate:"omitempty,min=1,max=255"`
}

type Service struct {
	repos    *repository.Repositories
	storage  storage.Storage
	root     string
	validate *validator.Validate
}

// NewService returns a Service whose account folders live in st. root only
// prefixes the recorded StoragePath.
func NewService(repos *repository.Repositories, st storage.Storage, root string) *Service {
	return &Service{repos: repos, storage: st, root: root, validate: validator.New()}
}

// Created is returned once, on creation; the API key is not shown again.
type Created struct {
	Account *models.Account
	Quota   *models.Quota
	APIKey  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Wrap(err, apperror.Invalid(err.Error()))
	}

	folder, storagePath, err := s.paths(in.Domain)
	if err != nil {
		return nil, err
	}
	if err := s.ensureDomainFree(ctx, in.Domain); err != nil {
		return nil, err
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	domain := in.Domain
	a, err := s.repos.Accounts.Create(ctx, &models.Account{
		APIKey:      key,
		Status:      models.AccountActive,
		Name:        in.Name,
		Domain:      &domain,
		Folder:      folder,
		StoragePath: storagePath,
		Role:        models.RoleUser,
	})
	if apperror.Is(err, apperror.ErrAlreadyExists) {
		return nil, apperror.ErrDomainTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	q, err := s.repos.Quotas.Create(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("create first quota: %w", err)
	}

	logger.FromContext(ctx).Info("account created", "account_id", a.ID, "folder", folder)
	return &Created{Account: a, Quota: q, APIKey: key}, nil
}

// Update renames the account and, when the domain changes, moves its
// folder to the one derived from the new domain.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Account, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperror.Wrap(err, apperror.Invalid(err.Error()))
	}
	a, err := s.repos.Accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Domain != nil && *in.Domain != a.DomainValue() {
		folder, storagePath, err := s.paths(*in.Domain)
		if err != nil {
			return nil, err
		}
		if err := s.ensureDomainFree(ctx, *in.Domain); err != nil {
			return nil, err
		}
		if a.Folder != "" {
			if err := s.storage.MoveFolder(ctx, a.Folder, folder); err != nil {
				return nil, fmt.Errorf("move account folder: %w", err)
			}
		}
		domain := *in.Domain
		a.Domain = &domain
		a.Folder = folder
		a.StoragePath = storagePath
	}
	if in.Name != nil {
		a.Name = *in.Name
	}

	saved, err := s.repos.Accounts.Save(ctx, a)
	if apperror.Is(err, apperror.ErrAlreadyExists) {
		return nil, apperror.ErrDomainTaken
	}
	return saved, err
}

// Delete removes the account folder and then the account; quotas and media
// rows go with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.repos.Accounts.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if a.Folder != "" {
		if err := s.storage.DeleteFolder(ctx, a.Folder); err != nil {
			return fmt.Errorf("remove account folder: %w", err)
		}
	}

	ok, err := s.repos.Accounts.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if !ok {
		return apperror.ErrAccountNotFound
	}
	logger.FromContext(ctx).Info("account deleted", "account_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Account, error) {
	return s.repos.Accounts.FindByID(ctx, id)
}

func (s *Service) paths(domain string) (folder, storagePath string, err error) {
	folder = naming.FolderFromDomain(domain)
	if folder == "" || folder == "." || folder == ".." || strings.ContainsAny(folder, `\`) {
		return "", "", apperror.Invalid("domain does not yield a usable folder name")
	}
	return folder, filepath.Join(s.root, folder), nil
}

func (s *Service) ensureDomainFree(ctx context.Context, domain string) error {
	_, err := s.repos.Accounts.FindByDomain(ctx, domain)
	switch {
	case err == nil:
		return apperror.ErrDomainTaken
	case apperror.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return err
	}
}

// GenerateAPIKey returns 256 random bits, hex encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
