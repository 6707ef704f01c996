// Package models holds the persistent entities shared by the store, the
// cache-coherent repositories and the workers.
package models

import "time"

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountExpired  AccountStatus = "expired"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Account struct {
	ID          string        `json:"id"`
	APIKey      string        `json:"apikey"`
	Status      AccountStatus `json:"status"`
	Name        string        `json:"name"`
	Domain      *string       `json:"domain,omitempty"`
	Folder      string        `json:"folder"`
	StoragePath string        `json:"storage_path"`
	UsedBytes   int64         `json:"used_bytes"`
	Role        Role          `json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DomainValue returns the domain or "" when the account has none.
func (a *Account) DomainValue() string {
	if a.Domain == nil {
		return ""
	}
	return *a.Domain
}

type Quota struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	Period           string    `json:"period"`
	TransferredBytes int64     `json:"transferred_bytes"`
	TotalRequests    int64     `json:"total_requests"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

type MediaStatus string

const (
	MediaTemporary MediaStatus = "temporary"
	MediaActive    MediaStatus = "active"
	MediaDeleted   MediaStatus = "deleted"
)

// Media is a processed image or video owned by an account.
type Media struct {
	ID        string      `json:"id"`
	Kind      MediaKind   `json:"kind"`
	Filename  string      `json:"filename"`
	Mimetype  string      `json:"mimetype"`
	Filesize  int64       `json:"filesize"`
	Status    MediaStatus `json:"status"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	AccountID string      `json:"account_id"`
	QuotaID   *string     `json:"quota_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Expired reports whether m is temporary and past its expiry at now.
func (m *Media) Expired(now time.Time) bool {
	return m.Status == MediaTemporary && m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}
