package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vzenlabs/vzen/internal/httpc"
	"github.com/vzenlabs/vzen/internal/log"
)

// LogSink writes events to the structured log. It is the sink of last
// resort and always present in a default setup.
type LogSink struct{}

// Deliver logs the event.
func (LogSink) Deliver(_ context.Context, ev Event) error {
	log.Info("service event",
		"kind", ev.Kind, "message", ev.Message, "id", ev.ID)
	return nil
}

// Close is a no-op.
func (LogSink) Close() error { return nil }

// WebhookSink posts events as JSON to an HTTP endpoint. One attempt per
// event; failures are the worker's to log.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook sink for the given URL.
func NewWebhook(url string) *WebhookSink {
	return &WebhookSink{url: url, client: httpc.Client}
}

// Deliver posts the event.
func (s *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}

// Close is a no-op; the shared HTTP client outlives the sink.
func (s *WebhookSink) Close() error { return nil }

// Verify sinks implement Sink at compile time.
var (
	_ Sink = LogSink{}
	_ Sink = (*WebhookSink)(nil)
)
