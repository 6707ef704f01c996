// Package jobrecord stores the pollable status of queued media jobs. A
// record lives in the cache store with a TTL. Every transition is a
// compare-and-set that keeps the remaining TTL, so a cancel request never
// gets overwritten by a worker's concurrent checkpoint.
package jobrecord

import (
	"context"
	"errors"
	"time"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCanceled   Status = "canceled"
	StatusDone       Status = "done"
)

// Terminal reports whether no further transition may happen.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusDone
}

type Record struct {
	JobID     string           `json:"job_id"`
	Kind      models.MediaKind `json:"kind"`
	Status    Status           `json:"status"`
	Filename  string           `json:"filename"`
	Filepath  string           `json:"filepath"`
	Mimetype  string           `json:"mimetype"`
	Filesize  int64            `json:"filesize"`
	Context   string           `json:"context,omitempty"`
	Format    string           `json:"format,omitempty"`
	AccountID string           `json:"account_id"`
	QuotaID   string           `json:"quota_id"`
	Progress  int              `json:"progress"`
	Stage     string           `json:"stage,omitempty"`
	URL       string           `json:"url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

var errMissing = errors.New("job record missing")

// backend persists raw records. modify applies fn atomically to the stored
// record, writes it back only when fn reports a change, keeps the key's
// remaining TTL and returns errMissing when the key is gone.
type backend interface {
	load(ctx context.Context, key string) (*Record, error)
	create(ctx context.Context, key string, r *Record, ttl time.Duration) error
	modify(ctx context.Context, key string, fn func(*Record) (bool, error)) (*Record, error)
	remove(ctx context.Context, key string) error
}

// Store manages the records of one media kind.
type Store struct {
	kind models.MediaKind
	ttl  time.Duration
	b    backend
	now  func() time.Time
}

// TTLFor returns the record lifetime for kind.
func TTLFor(kind models.MediaKind) time.Duration {
	if kind == models.KindVideo {
		return cache.VideoJobTTL
	}
	return cache.ImageJobTTL
}

func newStore(kind models.MediaKind, b backend) *Store {
	return &Store{kind: kind, ttl: TTLFor(kind), b: b, now: time.Now}
}

func (s *Store) Kind() models.MediaKind { return s.kind }

func (s *Store) key(jobID string) string {
	return cache.JobByID(string(s.kind), jobID)
}

// Create writes a new pending record.
func (s *Store) Create(ctx context.Context, r *Record) error {
	now := s.now()
	r.Kind = s.kind
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return s.b.create(ctx, s.key(r.JobID), r, s.ttl)
}

func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	r, err := s.b.load(ctx, s.key(jobID))
	if errors.Is(err, errMissing) {
		return nil, apperror.Wrap(err, apperror.ErrJobNotFound)
	}
	return r, err
}

// update applies fn to the current record and rewrites it when fn reports
// a change. The record as stored afterwards is returned.
func (s *Store) update(ctx context.Context, jobID string, fn func(*Record) (bool, error)) (*Record, error) {
	r, err := s.b.modify(ctx, s.key(jobID), func(r *Record) (bool, error) {
		changed, err := fn(r)
		if changed && err == nil {
			r.UpdatedAt = s.now()
		}
		return changed, err
	})
	if errors.Is(err, errMissing) {
		return nil, apperror.Wrap(err, apperror.ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// MarkProcessing moves a pending record to processing. Terminal records are
// left untouched.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) (*Record, error) {
	return s.update(ctx, jobID, func(r *Record) (bool, error) {
		if r.Status.Terminal() {
			return false, nil
		}
		r.Status = StatusProcessing
		return true, nil
	})
}

// MarkCanceled records that the worker stopped the job. A completed record
// stays completed.
func (s *Store) MarkCanceled(ctx context.Context, jobID string) (*Record, error) {
	return s.update(ctx, jobID, func(r *Record) (bool, error) {
		if r.Status.Terminal() {
			return false, nil
		}
		r.Status = StatusCanceled
		return true, nil
	})
}

func (s *Store) MarkCompleted(ctx context.Context, jobID, url string) (*Record, error) {
	return s.update(ctx, jobID, func(r *Record) (bool, error) {
		if r.Status.Terminal() {
			return false, nil
		}
		r.Status = StatusDone
		r.Progress = 100
		r.URL = url
		return true, nil
	})
}

// UpdateProgress stores a progress checkpoint. The returned record carries
// the current status so callers can observe a cancellation in the same
// round trip.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, percentage int, stage string) (*Record, error) {
	return s.update(ctx, jobID, func(r *Record) (bool, error) {
		if r.Status.Terminal() {
			return false, nil
		}
		r.Progress = percentage
		r.Stage = stage
		return true, nil
	})
}

// Cancel requests cancellation of a job that has not finished. The worker
// observes the request at its next checkpoint.
func (s *Store) Cancel(ctx context.Context, jobID string) (*Record, error) {
	r, err := s.update(ctx, jobID, func(r *Record) (bool, error) {
		switch r.Status {
		case StatusDone:
			return false, apperror.ErrJobAlreadyCompleted
		case StatusCanceled:
			return false, apperror.ErrJobAlreadyCanceled
		}
		r.Status = StatusCanceled
		return true, nil
	})

	switch {
	case err == nil:
		metrics.RecordCancellation(string(s.kind), "canceled")
	case apperror.Is(err, apperror.ErrNotFound):
		metrics.RecordCancellation(string(s.kind), "not_found")
	case apperror.Is(err, apperror.ErrConflict):
		metrics.RecordCancellation(string(s.kind), "conflict")
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, jobID string) error {
	return s.b.remove(ctx, s.key(jobID))
}
