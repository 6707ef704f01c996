package worker

import (
	"context"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/models"
)

// Canceller marks jobs canceled. The running worker notices at its next
// checkpoint; a job still queued is dropped when it starts.
type Canceller struct {
	stores map[models.MediaKind]*jobrecord.Store
}

func NewCanceller(stores ...*jobrecord.Store) *Canceller {
	c := &Canceller{stores: make(map[models.MediaKind]*jobrecord.Store, len(stores))}
	for _, s := range stores {
		if s != nil {
			c.stores[s.Kind()] = s
		}
	}
	return c
}

// Cancel returns a conflict error when the job already finished or was
// canceled before.
func (c *Canceller) Cancel(ctx context.Context, kind models.MediaKind, jobID string) (*jobrecord.Record, error) {
	s, ok := c.stores[kind]
	if !ok {
		return nil, apperror.Invalid("unknown media kind " + string(kind))
	}
	return s.Cancel(ctx, jobID)
}

// Status returns the current record of a job.
func (c *Canceller) Status(ctx context.Context, kind models.MediaKind, jobID string) (*jobrecord.Record, error) {
	s, ok := c.stores[kind]
	if !ok {
		return nil, apperror.Invalid("unknown media kind " + string(kind))
	}
	return s.Get(ctx, jobID)
}
