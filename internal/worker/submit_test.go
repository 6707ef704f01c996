package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/jobrecord"
)

func TestSubmitter_SubmitImageThenProcess(t *testing.T) {
	f := newFixture(t, &fakeImages{outputSize: 300}, nil)
	ctx := context.Background()
	queue := &fakeQueue{}
	s := NewSubmitter(queue, f.deps.ImageJobs, f.deps.VideoJobs, f.deps.Validator, f.deps.Ledger)

	writeJPEG(t, filepath.Join(f.dir, "logo.jpg"), 64, 64)
	id, err := s.SubmitImage(ctx, ImagePayload{Upload: f.upload("logo.jpg", 9_000), Context: "avatar"})
	if err != nil {
		t.Fatalf("SubmitImage() error = %v", err)
	}

	rec, err := f.deps.ImageJobs.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != jobrecord.StatusPending || rec.Context != "avatar" || rec.Mimetype != "image/jpeg" {
		t.Errorf("record = %+v", rec)
	}
	if q := f.reloadQuota(t); q.TotalRequests != 1 {
		t.Errorf("totalRequests = %d, want 1", q.TotalRequests)
	}

	if len(queue.jobs) != 1 || queue.jobs[0].ID != id {
		t.Fatalf("queued jobs = %v", queue.jobs)
	}
	out, err := f.deps.ProcessImage(ctx, queue.jobs[0])
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if out.JobID != id {
		t.Errorf("outcome job id = %s, want %s", out.JobID, id)
	}
}

func TestSubmitter_EnqueueFailureDropsRecord(t *testing.T) {
	f := newFixture(t, &fakeImages{}, nil)
	ctx := context.Background()
	queue := &fakeQueue{err: errors.New("redis down")}
	s := NewSubmitter(queue, f.deps.ImageJobs, f.deps.VideoJobs, f.deps.Validator, nil)

	writeJPEG(t, filepath.Join(f.dir, "a.jpg"), 8, 8)
	if _, err := s.SubmitImage(ctx, ImagePayload{Upload: f.upload("a.jpg", 100), Context: "generic"}); err == nil {
		t.Fatal("SubmitImage() should surface the enqueue error")
	}
	if len(queue.refused) != 1 {
		t.Fatalf("refused = %v", queue.refused)
	}
	if _, err := f.deps.ImageJobs.Get(ctx, queue.refused[0]); !apperror.Is(err, apperror.ErrNotFound) {
		t.Errorf("record of unqueued job still present: %v", err)
	}
	if q := f.reloadQuota(t); q.TotalRequests != 0 {
		t.Errorf("totalRequests = %d, want 0", q.TotalRequests)
	}
}

func TestSubmitter_Rejects(t *testing.T) {
	f := newFixture(t, &fakeImages{}, &fakeVideos{})
	ctx := context.Background()
	queue := &fakeQueue{}
	s := NewSubmitter(queue, f.deps.ImageJobs, f.deps.VideoJobs, f.deps.Validator, nil)

	writeJPEG(t, filepath.Join(f.dir, "pic.jpg"), 8, 8)

	tests := []struct {
		name   string
		submit func() error
	}{
		{"image without context", func() error {
			_, err := s.SubmitImage(ctx, ImagePayload{Upload: f.upload("pic.jpg", 10)})
			return err
		}},
		{"jpeg submitted as video", func() error {
			_, err := s.SubmitVideo(ctx, VideoPayload{Upload: f.upload("pic.jpg", 10), Format: "mp4"})
			return err
		}},
		{"unknown video format", func() error {
			_, err := s.SubmitVideo(ctx, VideoPayload{Upload: f.upload("pic.jpg", 10), Format: "avi"})
			return err
		}},
		{"missing upload", func() error {
			_, err := s.SubmitImage(ctx, ImagePayload{Upload: f.upload("gone.jpg", 10), Context: "avatar"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.submit(); !apperror.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("error = %v, want invalid input", err)
			}
		})
	}
	if len(queue.jobs) != 0 {
		t.Errorf("rejected submissions were queued: %d", len(queue.jobs))
	}
}

func TestSubmitter_SubmitVideo(t *testing.T) {
	f := newFixture(t, &fakeImages{}, &fakeVideos{outputSize: 10})
	ctx := context.Background()
	queue := &fakeQueue{}
	s := NewSubmitter(queue, f.deps.ImageJobs, f.deps.VideoJobs, f.deps.Validator, nil)

	writeBytes(t, filepath.Join(f.dir, "clip.mp4"), append(append([]byte{}, mp4Header...), make([]byte, 128)...))
	id, err := s.SubmitVideo(ctx, VideoPayload{Upload: f.upload("clip.mp4", 4_000), Format: "gif"})
	if err != nil {
		t.Fatalf("SubmitVideo() error = %v", err)
	}

	rec, err := f.deps.VideoJobs.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Format != "gif" || rec.Mimetype != "video/mp4" {
		t.Errorf("record = %+v", rec)
	}
	if _, err := f.deps.ImageJobs.Get(ctx, id); !apperror.Is(err, apperror.ErrNotFound) {
		t.Error("video jobs must not be recorded among image jobs")
	}
}
