package worker

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"

	"github.com/jonymoraes/mediaserver/internal/cache"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
	"github.com/jonymoraes/mediaserver/internal/ledger"
	"github.com/jonymoraes/mediaserver/internal/models"
	"github.com/jonymoraes/mediaserver/internal/notifier"
	"github.com/jonymoraes/mediaserver/internal/processor"
	"github.com/jonymoraes/mediaserver/internal/processor/image"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	"github.com/jonymoraes/mediaserver/internal/repository"
	"github.com/jonymoraes/mediaserver/internal/storage"
	"github.com/jonymoraes/mediaserver/internal/store"
)

// mp4Header is enough of an ISO BMFF ftyp box for content sniffing.
var mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2mp41")

type eventLog struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (l *eventLog) Publish(_ context.Context, e notifier.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ofType(typ notifier.EventType) []notifier.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []notifier.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) progress() []int {
	var out []int
	for _, e := range l.ofType(notifier.EventProgress) {
		out = append(out, e.Percentage)
	}
	return out
}

// fakeImages writes an output of a fixed size instead of decoding.
type fakeImages struct {
	outputSize int
	err        error
	// during runs inside Process before the output is written.
	during func()
}

func (f *fakeImages) Lookup(name string) (image.Size, bool) {
	s, ok := image.DefaultContexts[name]
	return s, ok
}

func (f *fakeImages) Process(ctx context.Context, inputPath, contextName string, canceled processor.CancelCheck) (*processor.Result, error) {
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".webp"
	if err := os.WriteFile(out, bytes.Repeat([]byte{'w'}, f.outputSize), 0o644); err != nil {
		return nil, err
	}
	_ = os.Remove(inputPath)
	return &processor.Result{Path: out, Filename: filepath.Base(out), ContentType: image.OutputMime, Size: int64(f.outputSize)}, nil
}

// fakeVideos reports the given percentages, then either finishes or, when
// waitCancel is set, blocks until the job is canceled.
type fakeVideos struct {
	steps      []int
	waitCancel chan struct{}
	outputSize int
}

func (f *fakeVideos) Lookup(format string) (video.Codec, bool) {
	c, ok := video.DefaultFormats[format]
	return c, ok
}

func (f *fakeVideos) Process(ctx context.Context, inputPath, filename, format string, progress processor.ProgressFunc, canceled processor.CancelCheck) (*processor.Result, error) {
	for _, pct := range f.steps {
		progress.Report(pct, video.StageTranscoding)
	}
	if f.waitCancel != nil {
		close(f.waitCancel)
		for !canceled.Canceled() {
			select {
			case <-ctx.Done():
				return nil, processor.ErrCanceled
			case <-time.After(5 * time.Millisecond):
			}
			progress.Report(50, video.StageTranscoding)
		}
		return nil, processor.ErrCanceled
	}

	out := video.OutputPath(inputPath, filename, format)
	if err := os.WriteFile(out, bytes.Repeat([]byte{'v'}, f.outputSize), 0o644); err != nil {
		return nil, err
	}
	_ = os.Remove(inputPath)
	progress.Report(82, video.StageExecuting)
	return &processor.Result{Path: out, Filename: filepath.Base(out), ContentType: f.mustLookup(format).Mime, Size: int64(f.outputSize)}, nil
}

func (f *fakeVideos) mustLookup(format string) video.Codec {
	c, _ := f.Lookup(format)
	return c
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*job.Job
	refused []string
	err     error
}

func (q *fakeQueue) Enqueue(_ context.Context, j *job.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		q.refused = append(q.refused, j.ID)
		return q.err
	}
	q.jobs = append(q.jobs, j)
	return nil
}

type fixture struct {
	deps    *Dependencies
	store   *store.Memory
	storage *storage.MemoryStorage
	events  *eventLog
	account *models.Account
	quota   *models.Quota
	dir     string
}

func newFixture(t *testing.T, images ImageTransformer, videos VideoTransformer) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemory()
	repos := repository.New(st, cache.NewMemory())

	domain := "acme.test"
	account, err := repos.Accounts.Create(ctx, &models.Account{
		APIKey: "acme-key", Status: models.AccountActive, Name: "Acme", Domain: &domain,
		Folder: "acme.test", StoragePath: "public/acme.test", Role: models.RoleUser,
	})
	if err != nil {
		t.Fatal(err)
	}
	quota, err := repos.Quotas.FindCurrent(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}

	events := &eventLog{}
	mem := storage.NewMemoryStorage()
	deps := &Dependencies{
		Repos:         repos,
		Ledger:        ledger.New(st, repos),
		Storage:       mem,
		Notifier:      events,
		Validator:     NewValidator(images, videos),
		ImageJobs:     jobrecord.NewMemory(models.KindImage),
		VideoJobs:     jobrecord.NewMemory(models.KindVideo),
		Images:        images,
		Videos:        videos,
		PublicBaseURL: "https://cdn.test/static/",
		MediaTTL:      "1d",
	}

	return &fixture{deps: deps, store: st, storage: mem, events: events, account: account, quota: quota, dir: t.TempDir()}
}

func (f *fixture) upload(name string, filesize int64) Upload {
	return Upload{
		Filename:  name,
		Filepath:  filepath.Join(f.dir, name),
		Mimetype:  "application/octet-stream",
		Filesize:  filesize,
		AccountID: f.account.ID,
		QuotaID:   f.quota.ID,
	}
}

// imageJob writes a JPEG upload and queues a pending record for it.
func (f *fixture) imageJob(t *testing.T, name, contextName string, filesize int64) (*job.Job, ImagePayload) {
	t.Helper()
	writeJPEG(t, filepath.Join(f.dir, name), 800, 600)
	p := ImagePayload{Upload: f.upload(name, filesize), Context: contextName}
	return f.newJob(t, TypeImage, f.deps.ImageJobs, p, p.Upload), p
}

func (f *fixture) videoJob(t *testing.T, name, format string, filesize int64) (*job.Job, VideoPayload) {
	t.Helper()
	writeBytes(t, filepath.Join(f.dir, name), append(append([]byte{}, mp4Header...), make([]byte, 512)...))
	p := VideoPayload{Upload: f.upload(name, filesize), Format: format}
	return f.newJob(t, TypeVideo, f.deps.VideoJobs, p, p.Upload), p
}

func (f *fixture) newJob(t *testing.T, jobType string, records *jobrecord.Store, payload any, up Upload) *job.Job {
	t.Helper()
	j, err := job.New(jobType, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := records.Create(context.Background(), &jobrecord.Record{
		JobID: j.ID, Filename: up.Filename, Filepath: up.Filepath, Filesize: up.Filesize,
		AccountID: up.AccountID, QuotaID: up.QuotaID,
	}); err != nil {
		t.Fatal(err)
	}
	return j
}

func (f *fixture) reloadAccount(t *testing.T) *models.Account {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), f.account.ID)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *fixture) reloadQuota(t *testing.T) *models.Quota {
	t.Helper()
	q, err := f.store.GetQuota(context.Background(), f.quota.ID)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func writeJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(255 * x / width), G: uint8(255 * y / height), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatal(err)
	}
	writeBytes(t, path, buf.Bytes())
}

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
