package worker

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/tracing"
)

// Enqueuer is the producing side of the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, j *job.Job) error
}

// Submitter turns validated uploads into queued jobs with a pending record.
type Submitter struct {
	queue     Enqueuer
	images    *jobrecord.Store
	videos    *jobrecord.Store
	validator *Validator
	ledger    *ledger.Ledger
}

// NewSubmitter builds a Submitter. l may be nil, in which case submissions
// are not counted as requests.
func NewSubmitter(queue Enqueuer, images, videos *jobrecord.Store, v *Validator, l *ledger.Ledger) *Submitter {
	return &Submitter{queue: queue, images: images, videos: videos, validator: v, ledger: l}
}

func (s *Submitter) SubmitImage(ctx context.Context, p ImagePayload) (string, error) {
	if err := s.validator.Image(&p); err != nil {
		return "", err
	}
	return s.submit(ctx, TypeImage, s.images, &p.Upload, &p, func(r *jobrecord.Record) { r.Context = p.Context })
}

func (s *Submitter) SubmitVideo(ctx context.Context, p VideoPayload) (string, error) {
	if s.videos == nil {
		return "", apperror.Invalid("video processing is not available")
	}
	if err := s.validator.Video(&p); err != nil {
		return "", err
	}
	return s.submit(ctx, TypeVideo, s.videos, &p.Upload, &p, func(r *jobrecord.Record) { r.Format = p.Format })
}

func (s *Submitter) submit(ctx context.Context, jobType string, records *jobrecord.Store, up *Upload, payload any, fill func(*jobrecord.Record)) (string, error) {
	ctx, span := tracing.StartSubmitSpan(ctx, jobType)
	defer span.End()
	up.Trace = tracing.Inject(ctx)

	j, err := job.New(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", jobType, "account_id", up.AccountID)

	rec := &jobrecord.Record{
		JobID:     j.ID,
		Filename:  up.Filename,
		Filepath:  up.Filepath,
		Mimetype:  up.Mimetype,
		Filesize:  up.Filesize,
		AccountID: up.AccountID,
		QuotaID:   up.QuotaID,
	}
	fill(rec)
	if err := records.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}

	if err := s.queue.Enqueue(ctx, j); err != nil {
		if derr := records.Delete(ctx, j.ID); derr != nil {
			log.Warn("failed to drop record of unqueued job", "error", derr)
		}
		tracing.RecordError(ctx, err)
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	metrics.RecordJobEnqueued(jobType)

	if s.ledger != nil {
		if _, err := s.ledger.IncrementRequestCount(ctx, up.AccountID); err != nil {
			log.Warn("failed to count request", "error", err)
		}
	}

	log.Info("job submitted", "filename", up.Filename)
	return j.ID, nil
}
