// Package cache is the key-value store with TTL that backs the repository
// layer. It is never authoritative: callers treat every error as a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

type Cache interface {
	// Get decodes the value stored at key into dst. It returns ErrMiss when
	// the key does not exist.
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// DeleteByPrefix removes every key starting with prefix and returns how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// Entity and job-record lifetimes.
const (
	AccountTTL  = 300 * time.Second
	QuotaTTL    = 300 * time.Second
	MediaTTL    = 300 * time.Second
	ImageJobTTL = time.Hour
	VideoJobTTL = 2 * time.Hour
)
