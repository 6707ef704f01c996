package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrCircuitOpen is returned while the webhook endpoint is considered down.
var ErrCircuitOpen = errors.New("webhook circuit open")

const (
	webhookTimeout   = 10 * time.Second
	webhookThreshold = 5
	webhookRecovery  = time.Minute
)

// Webhook posts signed events to a single HTTP endpoint. Progress events are
// skipped; terminal job events and quota updates are delivered.
type Webhook struct {
	url     string
	secret  string
	client  *http.Client
	breaker *breaker
	now     func() time.Time
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook returns a notifier posting to url. A nil client gets a traced
// client with a short timeout.
func NewWebhook(url, secret string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{
			Timeout:   webhookTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Webhook{
		url:     url,
		secret:  secret,
		client:  client,
		breaker: newBreaker(webhookThreshold, webhookRecovery),
		now:     time.Now,
	}
}

func (w *Webhook) Publish(ctx context.Context, e Event) error {
	if e.Type == EventProgress {
		return nil
	}
	if !w.breaker.allow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Media-Event", string(e.Type))
	if w.secret != "" {
		req.Header.Set(SignatureHeader, signatureHeader(body, w.secret, w.now()))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.breaker.failure()
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		w.breaker.failure()
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	w.breaker.success()
	return nil
}
