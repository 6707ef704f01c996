package worker

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/processor"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
)

// ImageHandler returns the queue handler for TypeImage jobs.
func ImageHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		_, err := deps.ProcessImage(ctx, j)
		return err
	}
}

// VideoHandler returns the queue handler for TypeVideo jobs.
func VideoHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		_, err := deps.ProcessVideo(ctx, j)
		return err
	}
}

// ProcessImage resizes the upload to its context size and re-encodes it as
// WebP, reporting 10, 30, 50, 70, 90 and 100.
func (d *Dependencies) ProcessImage(ctx context.Context, j *job.Job) (*Outcome, error) {
	var p ImagePayload
	if err := j.UnmarshalPayload(&p); err != nil {
		logger.FromContext(ctx).Error("invalid payload", "job_id", j.ID, "error", err)
		return nil, middleware.Permanent(apperror.Wrap(fmt.Errorf("invalid payload: %w", err), apperror.ErrInvalidInput))
	}

	return d.execute(ctx, j.ID, &p.Upload, stages{
		kind:      models.KindImage,
		jobType:   TypeImage,
		records:   d.ImageJobs,
		timeout:   d.ImageTimeout,
		publishAt: 70,
		validate:  func() error { return d.Validator.Image(&p) },
		transform: func(ctx context.Context, t *task) (*processor.Result, error) {
			t.checkpoint(ctx, 10, "starting")
			t.checkpoint(ctx, 30, "processing")
			if t.isCanceled() {
				return nil, processor.ErrCanceled
			}
			res, err := d.Images.Process(ctx, p.Filepath, p.Context, t.isCanceled)
			if err != nil {
				return nil, err
			}
			t.checkpoint(ctx, 50, "processed")
			return res, nil
		},
	})
}

// ProcessVideo transcodes the upload to the requested format. The worker
// reports 5 and 10, the transcoder 15 through 95 and 82 once the original
// is gone, then the worker 90 and 100.
func (d *Dependencies) ProcessVideo(ctx context.Context, j *job.Job) (*Outcome, error) {
	var p VideoPayload
	if err := j.UnmarshalPayload(&p); err != nil {
		logger.FromContext(ctx).Error("invalid payload", "job_id", j.ID, "error", err)
		return nil, middleware.Permanent(apperror.Wrap(fmt.Errorf("invalid payload: %w", err), apperror.ErrInvalidInput))
	}

	return d.execute(ctx, j.ID, &p.Upload, stages{
		kind:    models.KindVideo,
		jobType: TypeVideo,
		records: d.VideoJobs,
		timeout: d.VideoTimeout,
		validate: func() error {
			if d.Videos == nil {
				return apperror.Invalid("video processing is disabled on this worker")
			}
			return d.Validator.Video(&p)
		},
		transform: func(ctx context.Context, t *task) (*processor.Result, error) {
			t.checkpoint(ctx, 5, video.StageStarting)
			t.checkpoint(ctx, 10, video.StageValidating)
			if t.isCanceled() {
				return nil, processor.ErrCanceled
			}
			progress := func(pct int, stage string) { t.checkpoint(ctx, pct, stage) }
			return d.Videos.Process(ctx, p.Filepath, p.Filename, p.Format, progress, t.isCanceled)
		},
	})
}
