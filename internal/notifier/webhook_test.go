package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonymoraes/mediaserver/internal/models"
)

type webhookServer struct {
	mu       sync.Mutex
	status   int
	received []Event
	headers  []http.Header
	bodies   [][]byte
}

func (s *webhookServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var e Event
	_ = json.Unmarshal(body, &e)

	s.mu.Lock()
	s.received = append(s.received, e)
	s.headers = append(s.headers, r.Header.Clone())
	s.bodies = append(s.bodies, body)
	status := s.status
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (s *webhookServer) snapshot() ([]Event, []http.Header, [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.received...), append([]http.Header(nil), s.headers...), append([][]byte(nil), s.bodies...)
}

func TestWebhook_DeliversSignedEvents(t *testing.T) {
	srv := &webhookServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	w := NewWebhook(ts.URL, "whsec_test", ts.Client())
	ctx := context.Background()

	if err := w.Publish(ctx, Progress(models.KindVideo, "acme", "j1", 40, "transcoding")); err != nil {
		t.Fatal(err)
	}
	if err := w.Publish(ctx, Completed(models.KindVideo, "acme", "j1", "https://cdn.test/a.webm")); err != nil {
		t.Fatal(err)
	}

	received, headers, bodies := srv.snapshot()
	if len(received) != 1 {
		t.Fatalf("deliveries = %d, want 1 (progress is skipped)", len(received))
	}
	if received[0].Type != EventCompleted || received[0].URL != "https://cdn.test/a.webm" {
		t.Errorf("delivered %+v", received[0])
	}
	if got := headers[0].Get("X-Media-Event"); got != "completed" {
		t.Errorf("event header = %q", got)
	}
	if err := Verify(bodies[0], headers[0].Get(SignatureHeader), "whsec_test", time.Minute); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestWebhook_OpensCircuitAfterFailures(t *testing.T) {
	srv := &webhookServer{status: http.StatusBadGateway}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	w := NewWebhook(ts.URL, "", ts.Client())
	ctx := context.Background()
	e := Failed(models.KindImage, "acme", "j2", "Processing failed")

	for i := 0; i < webhookThreshold; i++ {
		if err := w.Publish(ctx, e); err == nil {
			t.Fatalf("delivery %d should fail", i)
		}
	}
	if err := w.Publish(ctx, e); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want circuit open", err)
	}
	if received, _, _ := srv.snapshot(); len(received) != webhookThreshold {
		t.Errorf("server saw %d requests, want %d", len(received), webhookThreshold)
	}

	// after recovery one probe goes through and success closes the circuit
	srv.mu.Lock()
	srv.status = http.StatusOK
	srv.mu.Unlock()
	w.breaker.now = func() time.Time { return time.Now().Add(2 * webhookRecovery) }

	if err := w.Publish(ctx, e); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if w.breaker.open() {
		t.Error("circuit should close after a successful probe")
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"type":"completed"}`)
	now := time.Now()
	valid := signatureHeader(body, "secret", now)

	tests := []struct {
		name    string
		body    []byte
		header  string
		secret  string
		wantErr bool
	}{
		{"valid", body, valid, "secret", false},
		{"wrong secret", body, valid, "other", true},
		{"tampered body", []byte(`{"type":"failed"}`), valid, "secret", true},
		{"expired", body, signatureHeader(body, "secret", now.Add(-time.Hour)), "secret", true},
		{"missing signature", body, "t=123", "secret", true},
		{"missing timestamp", body, "v1=abc", "secret", true},
		{"bad timestamp", body, "t=x,v1=abc", "secret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.body, tt.header, tt.secret, 5*time.Minute)
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
