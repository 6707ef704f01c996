package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jonymoraes/mediaserver/internal/models"
)

func TestHub_RoomScoping(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close()

	acme := h.Subscribe("acme", 4)
	other := h.Subscribe("other", 4)
	all := h.Subscribe("", 4)

	if err := h.Publish(ctx, Progress(models.KindImage, "acme", "j1", 30, "resizing")); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-acme.C:
		if e.JobID != "j1" || e.Percentage != 30 || e.Kind != "image" {
			t.Errorf("event = %+v", e)
		}
	default:
		t.Fatal("acme listener received nothing")
	}

	select {
	case e := <-other.C:
		t.Errorf("other room received %+v", e)
	default:
	}

	if len(all.C) != 1 {
		t.Errorf("global listener buffered %d events, want 1", len(all.C))
	}
}

func TestHub_SlowListenerDrops(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close()

	slow := h.Subscribe("acme", 2)
	for i := 0; i < 5; i++ {
		if err := h.Publish(ctx, Progress(models.KindVideo, "acme", "j1", i, "transcoding")); err != nil {
			t.Fatal(err)
		}
	}

	if len(slow.C) != 2 {
		t.Fatalf("buffered = %d, want 2", len(slow.C))
	}
	if e := <-slow.C; e.Percentage != 0 {
		t.Errorf("first event percentage = %d, want 0", e.Percentage)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("acme", 1)
	if h.Listeners() != 1 {
		t.Fatalf("Listeners() = %d, want 1", h.Listeners())
	}

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}
	if h.Listeners() != 0 {
		t.Errorf("Listeners() = %d, want 0", h.Listeners())
	}

	h.Close()
	late := h.Subscribe("acme", 1)
	if _, ok := <-late.C; ok {
		t.Error("subscription after Close should be closed")
	}
}

func TestHub_ConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close()
	sub := h.Subscribe("", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.Publish(ctx, Canceled(models.KindImage, "r", "j"))
			}
		}()
	}
	wg.Wait()

	if len(sub.C) != 500 {
		t.Errorf("received %d events, want 500", len(sub.C))
	}
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("redis down")}
	m := Multi{failing, ok}

	err := m.Publish(context.Background(), Completed(models.KindImage, "acme", "j1", "http://x/a.webp"))
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Errorf("every notifier should be attempted: ok=%d failing=%d", len(ok.events), len(failing.events))
	}
}

func TestQuotaUpdated(t *testing.T) {
	a := &models.Account{ID: "acc", UsedBytes: 9_500_000}
	q := &models.Quota{ID: "q", Period: "2024-05", TransferredBytes: 2_000_000, TotalRequests: 3}

	e := QuotaUpdated(a, q)
	if e.Type != EventQuotaUpdated || e.Kind != KindQuota || e.Room != "acc" {
		t.Errorf("event = %+v", e)
	}
	if e.Quota.UsedBytes != 9_500_000 || e.Quota.TransferredBytes != 2_000_000 {
		t.Errorf("snapshot = %+v", e.Quota)
	}

	e = QuotaUpdated(a, nil)
	if e.Quota.QuotaID != "" || e.Quota.UsedBytes != 9_500_000 {
		t.Errorf("snapshot without quota = %+v", e.Quota)
	}
}

func TestEventTerminal(t *testing.T) {
	tests := []struct {
		e    Event
		want bool
	}{
		{Progress(models.KindImage, "", "j", 10, "s"), false},
		{Completed(models.KindImage, "", "j", "u"), true},
		{Canceled(models.KindImage, "", "j"), true},
		{Failed(models.KindImage, "", "j", "boom"), true},
		{QuotaUpdated(&models.Account{ID: "a"}, nil), false},
	}
	for _, tt := range tests {
		if got := tt.e.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.e.Type, got, tt.want)
		}
	}
}
