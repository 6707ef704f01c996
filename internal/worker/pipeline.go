// Package worker runs the image and video jobs pulled from the durable
// queue: validation, transfer accounting, the transform with progress
// checkpoints, publication and the completion bookkeeping.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/jonymoraes/mediaserver/internal/alerting"
	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/logger"
	"github.com/jonymoraes/mediaserver/internal/metrics"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/processor"
	"github.com/jonymoraes/mediaserver/internal/processor/image"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
	"github.com/jonymoraes/mediaserver/internal/timeutil"
	"github.com/jonymoraes/mediaserver/internal/tracing"
)

const defaultMediaTTL = "1d"

// ContextLookup resolves image context names.
type ContextLookup interface {
	Lookup(name string) (image.Size, bool)
}

// FormatLookup resolves video output formats.
type FormatLookup interface {
	Lookup(format string) (video.Codec, bool)
}

type ImageTransformer interface {
	ContextLookup
	Process(ctx context.Context, inputPath, contextName string, canceled processor.CancelCheck) (*processor.Result, error)
}

type VideoTransformer interface {
	FormatLookup
	Process(ctx context.Context, inputPath, filename, format string, progress processor.ProgressFunc, canceled processor.CancelCheck) (*processor.Result, error)
}

type Dependencies struct {
	Repos     *repository.Repositories
	Ledger    *ledger.Ledger
	Storage   storage.Storage
	Notifier  notifier.Notifier
	Validator *Validator

	ImageJobs *jobrecord.Store
	VideoJobs *jobrecord.Store

	Images ImageTransformer
	// Videos is nil when the worker is built without video support.
	Videos VideoTransformer

	PublicBaseURL string
	// MediaTTL is how long processed media stays temporary, e.g. "1d".
	MediaTTL     string
	ImageTimeout time.Duration
	VideoTimeout time.Duration
}

// Outcome is what a successful job reports.
type Outcome struct {
	JobID string `json:"jobId"`
	URL   string `json:"url"`
}

// MediaURL returns the public URL of a storage key.
func (d *Dependencies) MediaURL(key string) string {
	return strings.TrimRight(d.PublicBaseURL, "/") + "/" + key
}

func (d *Dependencies) events() notifier.Notifier {
	if d.Notifier == nil {
		return notifier.Nop{}
	}
	return d.Notifier
}

type transformFunc func(ctx context.Context, t *task) (*processor.Result, error)

// stages describes the kind-specific parts of a run.
type stages struct {
	kind    models.MediaKind
	jobType string
	records *jobrecord.Store
	timeout time.Duration
	// publishAt is the checkpoint reported before publication; zero skips it.
	publishAt int
	validate  func() error
	transform transformFunc
}

// task is the state of one job run.
type task struct {
	deps     *Dependencies
	st       stages
	jobID    string
	upload   *Upload
	media    *repository.MediaRepository
	account  *models.Account
	quota    *models.Quota
	canceled atomic.Bool

	output    string
	published string
	mediaID   string
	status    string
}

func (t *task) isCanceled() bool { return t.canceled.Load() }

// execute runs the shared pipeline for one job.
// up is validated in place by st.validate.
func (d *Dependencies) execute(ctx context.Context, jobID string, up *Upload, st stages) (*Outcome, error) {
	ctx = tracing.Extract(ctx, up.Trace)
	ctx, span := tracing.StartJobSpan(ctx, st.jobType, jobID, string(st.kind))
	defer span.End()

	ctx = logger.WithJob(ctx, jobID, st.jobType)
	ctx = logger.WithAccountID(ctx, up.AccountID)
	log := logger.FromContext(ctx)

	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}

	log.Info("job started", "filename", up.Filename, "filesize", up.Filesize)
	start := time.Now()

	t := &task{deps: d, st: st, jobID: jobID, upload: up, media: d.Repos.Media(st.kind), status: "completed"}
	out, err := t.run(ctx)

	status := t.status
	if err != nil && status == "completed" {
		status = "retry"
	}
	if status == "failed" || status == "retry" {
		tracing.RecordError(ctx, err)
	}
	metrics.RecordJobProcessed(st.jobType, status, time.Since(start).Seconds())

	if err != nil {
		log.Warn("job finished without output", "status", status, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, err
	}
	log.Info("job completed", "duration_ms", time.Since(start).Milliseconds(), "url", out.URL)
	return out, nil
}

func (t *task) run(ctx context.Context) (*Outcome, error) {
	d := t.deps
	log := logger.FromContext(ctx)

	if err := t.st.validate(); err != nil {
		log.Warn("payload rejected", "error", err)
		return nil, t.fail(ctx, err, false)
	}

	quota, err := d.Repos.Quotas.FindByID(ctx, t.upload.QuotaID)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, t.fail(ctx, err, false)
		}
		return nil, fmt.Errorf("load quota: %w", err)
	}
	account, err := d.Repos.Accounts.FindByID(ctx, t.upload.AccountID)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, t.fail(ctx, err, false)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if quota.AccountID != account.ID {
		return nil, t.fail(ctx, apperror.Invalid("quota does not belong to account"), false)
	}
	t.account = account

	// The transfer charge is never refunded. Past this point every error is
	// permanent so a retry cannot charge twice.
	quota, err = d.Ledger.ChargeTransfer(ctx, quota.ID, t.upload.Filesize)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, t.fail(ctx, err, false)
		}
		return nil, fmt.Errorf("charge transfer: %w", err)
	}
	t.quota = quota

	rec, err := t.st.records.Get(ctx, t.jobID)
	switch {
	case err != nil:
		log.Warn("job record unavailable", "error", err)
	case rec.Status == jobrecord.StatusCanceled:
		t.canceled.Store(true)
	}
	// A terminal record is left as it is.
	if _, err := t.st.records.MarkProcessing(ctx, t.jobID); err != nil {
		log.Warn("failed to mark job processing", "error", err)
	}

	if t.isCanceled() {
		return nil, t.cancel(ctx)
	}

	transformStart := time.Now()
	res, err := t.st.transform(ctx, t)
	metrics.RecordJobStage(t.st.jobType, "transform", time.Since(transformStart).Seconds())
	if res != nil {
		t.output = res.Path
	}
	if err != nil {
		if errors.Is(err, processor.ErrCanceled) && t.isCanceled() {
			return nil, t.cancel(ctx)
		}
		return nil, t.fail(ctx, apperror.Failed(err), true)
	}
	if t.isCanceled() {
		return nil, t.cancel(ctx)
	}

	return t.finish(ctx, res)
}

// finish publishes the output and records it. Once the media row exists
// the job completes even if a cancel arrives.
func (t *task) finish(ctx context.Context, res *processor.Result) (*Outcome, error) {
	d := t.deps

	if t.st.publishAt > 0 {
		t.checkpoint(ctx, t.st.publishAt, "publishing")
		if t.isCanceled() {
			return nil, t.cancel(ctx)
		}
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		return nil, t.fail(ctx, apperror.Failed(fmt.Errorf("stat output: %w", err)), true)
	}
	size := info.Size()

	key := storage.Key(t.account.Folder, res.Filename)
	if err := d.Storage.Publish(ctx, key, res.Path, res.ContentType); err != nil {
		return nil, t.fail(ctx, apperror.Failed(fmt.Errorf("publish output: %w", err)), true)
	}
	t.published = key
	url := d.MediaURL(key)

	ttl := d.MediaTTL
	if ttl == "" {
		ttl = defaultMediaTTL
	}
	expiresAt, err := timeutil.FromNow(ttl)
	if err != nil {
		return nil, t.fail(ctx, apperror.Failed(err), true)
	}

	quotaID := t.quota.ID
	m, err := t.media.Create(ctx, &models.Media{
		Filename:  res.Filename,
		Mimetype:  res.ContentType,
		Filesize:  size,
		Status:    models.MediaTemporary,
		ExpiresAt: &expiresAt,
		AccountID: t.account.ID,
		QuotaID:   &quotaID,
	})
	if err != nil {
		return nil, t.fail(ctx, apperror.Failed(fmt.Errorf("create media: %w", err)), true)
	}
	t.mediaID = m.ID
	metrics.RecordMediaCreated(string(t.st.kind), size)

	used, err := d.Ledger.ChargeStorage(ctx, t.account.ID, size)
	if err != nil {
		return nil, t.fail(ctx, apperror.Failed(fmt.Errorf("charge storage: %w", err)), true)
	}
	t.account.UsedBytes = used

	t.checkpoint(ctx, 90, "finalizing")

	if rec, err := t.st.records.MarkCompleted(ctx, t.jobID, url); err != nil {
		logger.FromContext(ctx).Warn("failed to mark job completed", "error", err)
	} else if rec.Status == jobrecord.StatusCanceled {
		logger.FromContext(ctx).Info("cancel arrived after publication, keeping output")
	}
	t.checkpoint(ctx, 100, "completed")

	t.publish(ctx, notifier.Completed(t.st.kind, t.upload.AccountID, t.jobID, url))
	t.publish(ctx, notifier.QuotaUpdated(t.account, t.quota))

	return &Outcome{JobID: t.jobID, URL: url}, nil
}

// checkpoint re-reads the job record while writing progress. A canceled
// record raises the local flag instead of emitting progress.
func (t *task) checkpoint(ctx context.Context, percentage int, stage string) {
	rec, err := t.st.records.UpdateProgress(ctx, t.jobID, percentage, stage)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to record progress", "percentage", percentage, "error", err)
	} else if rec.Status == jobrecord.StatusCanceled {
		t.canceled.Store(true)
		return
	}
	t.publish(ctx, notifier.Progress(t.st.kind, t.upload.AccountID, t.jobID, percentage, stage))
}

func (t *task) publish(ctx context.Context, e notifier.Event) {
	if err := t.deps.events().Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("failed to publish event", "type", e.Type, "error", err)
	}
}

// cancel cleans up after an observed cancellation.
func (t *task) cancel(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	t.status = "canceled"
	logger.FromContext(ctx).Info("job canceled")

	t.cleanup(ctx, true)
	if _, err := t.st.records.MarkCanceled(ctx, t.jobID); err != nil {
		logger.FromContext(ctx).Warn("failed to mark job canceled", "error", err)
	}
	t.publish(ctx, notifier.Canceled(t.st.kind, t.upload.AccountID, t.jobID))
	metrics.RecordCancellation(string(t.st.kind), "observed")

	return middleware.Permanent(apperror.Wrap(processor.ErrCanceled, apperror.ErrCanceled))
}

// fail cleans up, reports err and returns it as a permanent failure.
// dropInput is false until the upload has been validated and charged.
func (t *task) fail(ctx context.Context, err error, dropInput bool) error {
	ctx = context.WithoutCancel(ctx)
	t.status = "failed"
	logger.FromContext(ctx).Error("job failed", "error", err)

	t.cleanup(ctx, dropInput)
	t.publish(ctx, notifier.Failed(t.st.kind, t.upload.AccountID, t.jobID, apperror.SafeMessage(err)))
	alerting.Capture(ctx, err, map[string]string{
		"kind":     string(t.st.kind),
		"job_type": t.st.jobType,
	})

	return middleware.Permanent(err)
}

// cleanup removes what the run produced: the media row, the published
// object, the local output and optionally the upload itself.
func (t *task) cleanup(ctx context.Context, dropInput bool) {
	log := logger.FromContext(ctx)

	if t.mediaID != "" {
		if _, err := t.media.Delete(ctx, t.mediaID); err != nil {
			log.Warn("failed to delete media row", "media_id", t.mediaID, "error", err)
		}
	}
	if t.published != "" {
		if err := t.deps.Storage.Delete(ctx, t.published); err != nil {
			log.Warn("failed to delete published output", "key", t.published, "error", err)
		}
	}
	if err := processor.RemoveQuietly(t.output); err != nil {
		log.Warn("failed to remove output", "path", t.output, "error", err)
	}
	if dropInput {
		if err := processor.RemoveQuietly(t.upload.Filepath); err != nil {
			log.Warn("failed to remove upload", "path", t.upload.Filepath, "error", err)
		}
	}
}
