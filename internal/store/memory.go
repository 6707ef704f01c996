package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonymoraes/mediaserver/internal/models"
)

// Memory is an in-process Store with the same uniqueness and cascade rules
// as the Postgres schema. It is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	quotas   map[string]*models.Quota
	media    map[string]*models.Media

	// Reads counts every Get*/List* call; tests use it to observe cache hits.
	Reads int

	DeleteMediaErr  error
	AddUsedBytesErr error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*models.Account),
		quotas:   make(map[string]*models.Quota),
		media:    make(map[string]*models.Media),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Domain != nil {
		d := *a.Domain
		c.Domain = &d
	}
	return &c
}

func cloneQuota(q *models.Quota) *models.Quota {
	c := *q
	return &c
}

func cloneMedia(m *models.Media) *models.Media {
	c := *m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	if m.QuotaID != nil {
		q := *m.QuotaID
		c.QuotaID = &q
	}
	return &c
}

func (s *Memory) findAccount(match func(*models.Account) bool) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	for _, a := range s.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) GetAccount(_ context.Context, id string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.ID == id })
}

func (s *Memory) GetAccountByDomain(_ context.Context, domain string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.Domain != nil && *a.Domain == domain })
}

func (s *Memory) GetAccountByFolder(_ context.Context, folder string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.Folder == folder })
}

func (s *Memory) GetAccountByAPIKey(_ context.Context, apikey string) (*models.Account, error) {
	return s.findAccount(func(a *models.Account) bool { return a.APIKey == apikey })
}

func (s *Memory) checkAccountUnique(a *models.Account) error {
	for _, other := range s.accounts {
		if other.ID == a.ID {
			continue
		}
		switch {
		case other.APIKey == a.APIKey:
			return fmt.Errorf("%w: accounts_apikey_key", ErrDuplicate)
		case other.Folder == a.Folder:
			return fmt.Errorf("%w: accounts_folder_key", ErrDuplicate)
		case a.Domain != nil && other.Domain != nil && *a.Domain == *other.Domain:
			return fmt.Errorf("%w: accounts_domain_key", ErrDuplicate)
		}
	}
	return nil
}

func (s *Memory) CreateAccount(_ context.Context, a *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneAccount(a)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, ok := s.accounts[c.ID]; ok {
		return nil, fmt.Errorf("%w: accounts_pkey", ErrDuplicate)
	}
	if err := s.checkAccountUnique(c); err != nil {
		return nil, err
	}
	if c.Status == "" {
		c.Status = models.AccountActive
	}
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now

	s.accounts[c.ID] = c
	return cloneAccount(c), nil
}

func (s *Memory) UpdateAccount(_ context.Context, a *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[a.ID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneAccount(a)
	if err := s.checkAccountUnique(c); err != nil {
		return nil, err
	}
	c.UsedBytes = existing.UsedBytes
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()

	s.accounts[c.ID] = c
	return cloneAccount(c), nil
}

func (s *Memory) DeleteAccount(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return false, nil
	}
	delete(s.accounts, id)
	for qid, q := range s.quotas {
		if q.AccountID == id {
			delete(s.quotas, qid)
		}
	}
	for mid, m := range s.media {
		if m.AccountID == id {
			delete(s.media, mid)
		}
	}
	return true, nil
}

func (s *Memory) AddUsedBytes(_ context.Context, accountID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AddUsedBytesErr != nil {
		return 0, s.AddUsedBytesErr
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, ErrNotFound
	}
	a.UsedBytes = max(0, a.UsedBytes+delta)
	a.UpdatedAt = time.Now()
	return a.UsedBytes, nil
}

func (s *Memory) GetQuota(_ context.Context, id string) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	q, ok := s.quotas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneQuota(q), nil
}

func (s *Memory) quotaByPeriod(accountID, period string) *models.Quota {
	for _, q := range s.quotas {
		if q.AccountID == accountID && q.Period == period {
			return q
		}
	}
	return nil
}

func (s *Memory) GetQuotaByPeriod(_ context.Context, accountID, period string) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	if q := s.quotaByPeriod(accountID, period); q != nil {
		return cloneQuota(q), nil
	}
	return nil, ErrNotFound
}

func (s *Memory) EnsureQuota(_ context.Context, accountID, period string) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q := s.quotaByPeriod(accountID, period); q != nil {
		return cloneQuota(q), nil
	}
	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("account %s does not exist: %w", accountID, ErrNotFound)
	}

	now := time.Now()
	q := &models.Quota{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Period:    period,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.quotas[q.ID] = q
	return cloneQuota(q), nil
}

func (s *Memory) UpdateQuota(_ context.Context, quota *models.Quota) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[quota.ID]
	if !ok {
		return nil, ErrNotFound
	}
	q.TransferredBytes = quota.TransferredBytes
	q.TotalRequests = quota.TotalRequests
	q.UpdatedAt = time.Now()
	return cloneQuota(q), nil
}

func (s *Memory) DeleteQuota(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotas[id]; !ok {
		return false, nil
	}
	delete(s.quotas, id)
	for _, m := range s.media {
		if m.QuotaID != nil && *m.QuotaID == id {
			m.QuotaID = nil
		}
	}
	return true, nil
}

func (s *Memory) AddTransferredBytes(_ context.Context, quotaID string, delta int64) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[quotaID]
	if !ok {
		return nil, ErrNotFound
	}
	q.TransferredBytes = max(0, q.TransferredBytes+delta)
	q.UpdatedAt = time.Now()
	return cloneQuota(q), nil
}

func (s *Memory) IncrementRequests(_ context.Context, quotaID string) (*models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[quotaID]
	if !ok {
		return nil, ErrNotFound
	}
	q.TotalRequests++
	q.UpdatedAt = time.Now()
	return cloneQuota(q), nil
}

func (s *Memory) GetMedia(_ context.Context, kind models.MediaKind, id string) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	m, ok := s.media[id]
	if !ok || m.Kind != kind {
		return nil, ErrNotFound
	}
	return cloneMedia(m), nil
}

func (s *Memory) GetMediaByFilename(_ context.Context, kind models.MediaKind, accountID, filename string) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	for _, m := range s.media {
		if m.Kind == kind && m.AccountID == accountID && m.Filename == filename {
			return cloneMedia(m), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) ListMediaByAccount(_ context.Context, kind models.MediaKind, accountID string) ([]*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	var out []*models.Media
	for _, m := range s.media {
		if m.Kind == kind && m.AccountID == accountID {
			out = append(out, cloneMedia(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) ListExpiredMedia(_ context.Context, kind models.MediaKind, now time.Time, limit int) ([]*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++

	var out []*models.Media
	for _, m := range s.media {
		if m.Kind == kind && m.Expired(now) {
			out = append(out, cloneMedia(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) CreateMedia(_ context.Context, m *models.Media) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[m.AccountID]; !ok {
		return nil, fmt.Errorf("account %s does not exist: %w", m.AccountID, ErrNotFound)
	}
	c := cloneMedia(m)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	for _, other := range s.media {
		if other.Kind == c.Kind && other.AccountID == c.AccountID && other.Filename == c.Filename {
			return nil, fmt.Errorf("%w: idx_media_account_filename", ErrDuplicate)
		}
	}
	if c.Status == "" {
		c.Status = models.MediaTemporary
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = c.CreatedAt

	s.media[c.ID] = c
	return cloneMedia(c), nil
}

func (s *Memory) UpdateMedia(_ context.Context, m *models.Media) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.media[m.ID]
	if !ok || existing.Kind != m.Kind {
		return nil, ErrNotFound
	}
	c := cloneMedia(m)
	c.AccountID = existing.AccountID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()

	s.media[c.ID] = c
	return cloneMedia(c), nil
}

func (s *Memory) DeleteMedia(_ context.Context, kind models.MediaKind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteMediaErr != nil {
		return false, s.DeleteMediaErr
	}
	m, ok := s.media[id]
	if !ok || m.Kind != kind {
		return false, nil
	}
	delete(s.media, id)
	return true, nil
}

func (s *Memory) DeleteExpiredMedia(_ context.Context, kind models.MediaKind, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteMediaErr != nil {
		return false, s.DeleteMediaErr
	}
	m, ok := s.media[id]
	if !ok || m.Kind != kind || !m.Expired(now) {
		return false, nil
	}
	delete(s.media, id)
	return true, nil
}

// QuotaCount returns how many quota rows exist for accountID.
func (s *Memory) QuotaCount(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, q := range s.quotas {
		if q.AccountID == accountID {
			n++
		}
	}
	return n
}

// MediaCount returns how many media rows of kind exist.
func (s *Memory) MediaCount(kind models.MediaKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.media {
		if m.Kind == kind {
			n++
		}
	}
	return n
}
