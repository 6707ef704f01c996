package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonymoraes/mediaserver/internal/models"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	db DBTX
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			// foreign key: the referenced account or quota is gone
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

const accountColumns = `id, apikey, status, name, domain, folder, storage_path, used_bytes, role, created_at, updated_at`

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.APIKey, &a.Status, &a.Name, &a.Domain, &a.Folder,
		&a.StoragePath, &a.UsedBytes, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (p *Postgres) getAccountBy(ctx context.Context, column, value string) (*models.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + column + ` = $1`
	return scanAccount(p.db.QueryRow(ctx, q, value))
}

func (p *Postgres) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return p.getAccountBy(ctx, "id", id)
}

func (p *Postgres) GetAccountByDomain(ctx context.Context, domain string) (*models.Account, error) {
	return p.getAccountBy(ctx, "domain", domain)
}

func (p *Postgres) GetAccountByFolder(ctx context.Context, folder string) (*models.Account, error) {
	return p.getAccountBy(ctx, "folder", folder)
}

func (p *Postgres) GetAccountByAPIKey(ctx context.Context, apikey string) (*models.Account, error) {
	return p.getAccountBy(ctx, "apikey", apikey)
}

func (p *Postgres) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.AccountActive
	}
	if a.Role == "" {
		a.Role = models.RoleUser
	}

	const q = `INSERT INTO accounts (id, apikey, status, name, domain, folder, storage_path, used_bytes, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns
	return scanAccount(p.db.QueryRow(ctx, q, id, a.APIKey, a.Status, a.Name, a.Domain,
		a.Folder, a.StoragePath, a.UsedBytes, a.Role))
}

// UpdateAccount writes every column except used_bytes, which only moves
// through AddUsedBytes.
func (p *Postgres) UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	const q = `UPDATE accounts
		SET apikey = $2, status = $3, name = $4, domain = $5, folder = $6, storage_path = $7, role = $8, updated_at = now()
		WHERE id = $1
		RETURNING ` + accountColumns
	return scanAccount(p.db.QueryRow(ctx, q, a.ID, a.APIKey, a.Status, a.Name, a.Domain,
		a.Folder, a.StoragePath, a.Role))
}

func (p *Postgres) DeleteAccount(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) AddUsedBytes(ctx context.Context, accountID string, delta int64) (int64, error) {
	const q = `UPDATE accounts
		SET used_bytes = GREATEST(0, used_bytes + $2), updated_at = now()
		WHERE id = $1
		RETURNING used_bytes`
	var used int64
	if err := p.db.QueryRow(ctx, q, accountID, delta).Scan(&used); err != nil {
		return 0, mapErr(err)
	}
	return used, nil
}

const quotaColumns = `id, account_id, period, transferred_bytes, total_requests, created_at, updated_at`

func scanQuota(row scanner) (*models.Quota, error) {
	var q models.Quota
	err := row.Scan(&q.ID, &q.AccountID, &q.Period, &q.TransferredBytes, &q.TotalRequests,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &q, nil
}

func (p *Postgres) GetQuota(ctx context.Context, id string) (*models.Quota, error) {
	return scanQuota(p.db.QueryRow(ctx, `SELECT `+quotaColumns+` FROM quotas WHERE id = $1`, id))
}

func (p *Postgres) GetQuotaByPeriod(ctx context.Context, accountID, period string) (*models.Quota, error) {
	const q = `SELECT ` + quotaColumns + ` FROM quotas WHERE account_id = $1 AND period = $2`
	return scanQuota(p.db.QueryRow(ctx, q, accountID, period))
}

func (p *Postgres) EnsureQuota(ctx context.Context, accountID, period string) (*models.Quota, error) {
	const insert = `INSERT INTO quotas (id, account_id, period)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, period) DO NOTHING`
	if _, err := p.db.Exec(ctx, insert, uuid.NewString(), accountID, period); err != nil {
		return nil, mapErr(err)
	}
	return p.GetQuotaByPeriod(ctx, accountID, period)
}

func (p *Postgres) UpdateQuota(ctx context.Context, quota *models.Quota) (*models.Quota, error) {
	const q = `UPDATE quotas
		SET transferred_bytes = $2, total_requests = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + quotaColumns
	return scanQuota(p.db.QueryRow(ctx, q, quota.ID, quota.TransferredBytes, quota.TotalRequests))
}

func (p *Postgres) DeleteQuota(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM quotas WHERE id = $1`, id)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) AddTransferredBytes(ctx context.Context, quotaID string, delta int64) (*models.Quota, error) {
	const q = `UPDATE quotas
		SET transferred_bytes = GREATEST(0, transferred_bytes + $2), updated_at = now()
		WHERE id = $1
		RETURNING ` + quotaColumns
	return scanQuota(p.db.QueryRow(ctx, q, quotaID, delta))
}

func (p *Postgres) IncrementRequests(ctx context.Context, quotaID string) (*models.Quota, error) {
	const q = `UPDATE quotas
		SET total_requests = total_requests + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + quotaColumns
	return scanQuota(p.db.QueryRow(ctx, q, quotaID))
}

const mediaColumns = `id, kind, filename, mimetype, filesize, status, expires_at, account_id, quota_id, created_at, updated_at`

func scanMedia(row scanner) (*models.Media, error) {
	var m models.Media
	err := row.Scan(&m.ID, &m.Kind, &m.Filename, &m.Mimetype, &m.Filesize, &m.Status,
		&m.ExpiresAt, &m.AccountID, &m.QuotaID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (p *Postgres) listMedia(ctx context.Context, q string, args ...any) ([]*models.Media, error) {
	rows, err := p.db.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}

func (p *Postgres) GetMedia(ctx context.Context, kind models.MediaKind, id string) (*models.Media, error) {
	const q = `SELECT ` + mediaColumns + ` FROM media WHERE kind = $1 AND id = $2`
	return scanMedia(p.db.QueryRow(ctx, q, kind, id))
}

func (p *Postgres) GetMediaByFilename(ctx context.Context, kind models.MediaKind, accountID, filename string) (*models.Media, error) {
	const q = `SELECT ` + mediaColumns + ` FROM media WHERE kind = $1 AND account_id = $2 AND filename = $3`
	return scanMedia(p.db.QueryRow(ctx, q, kind, accountID, filename))
}

func (p *Postgres) ListMediaByAccount(ctx context.Context, kind models.MediaKind, accountID string) ([]*models.Media, error) {
	const q = `SELECT ` + mediaColumns + ` FROM media WHERE kind = $1 AND account_id = $2 ORDER BY created_at DESC`
	return p.listMedia(ctx, q, kind, accountID)
}

func (p *Postgres) ListExpiredMedia(ctx context.Context, kind models.MediaKind, now time.Time, limit int) ([]*models.Media, error) {
	const q = `SELECT ` + mediaColumns + ` FROM media
		WHERE kind = $1 AND status = 'temporary' AND expires_at < $2
		ORDER BY created_at ASC
		LIMIT $3`
	return p.listMedia(ctx, q, kind, now, limit)
}

func (p *Postgres) CreateMedia(ctx context.Context, m *models.Media) (*models.Media, error) {
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := m.Status
	if status == "" {
		status = models.MediaTemporary
	}

	const q = `INSERT INTO media (id, kind, filename, mimetype, filesize, status, expires_at, account_id, quota_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + mediaColumns
	return scanMedia(p.db.QueryRow(ctx, q, id, m.Kind, m.Filename, m.Mimetype, m.Filesize,
		status, m.ExpiresAt, m.AccountID, m.QuotaID))
}

func (p *Postgres) UpdateMedia(ctx context.Context, m *models.Media) (*models.Media, error) {
	const q = `UPDATE media
		SET filename = $3, mimetype = $4, filesize = $5, status = $6, expires_at = $7, quota_id = $8, updated_at = now()
		WHERE kind = $1 AND id = $2
		RETURNING ` + mediaColumns
	return scanMedia(p.db.QueryRow(ctx, q, m.Kind, m.ID, m.Filename, m.Mimetype, m.Filesize,
		m.Status, m.ExpiresAt, m.QuotaID))
}

func (p *Postgres) DeleteMedia(ctx context.Context, kind models.MediaKind, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM media WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) DeleteExpiredMedia(ctx context.Context, kind models.MediaKind, id string, now time.Time) (bool, error) {
	const q = `DELETE FROM media
		WHERE kind = $1 AND id = $2 AND status = 'temporary' AND expires_at < $3`
	tag, err := p.db.Exec(ctx, q, kind, id, now)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}
