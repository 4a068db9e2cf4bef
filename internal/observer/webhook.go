// ABOUTME: Optional webhook observer: fire-and-forget HTTP delivery of lifecycle events.
// ABOUTME: HMAC-SHA256 signed, SSRF-safe client, response body discarded. A plain EventBus subscriber, not privileged.
package observer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/fluxqueue/fluxqueue/internal/eventbus"
)

// BuildSafeClient returns an SSRF-safe *http.Client for webhook delivery.
// Redirect following is disabled; timeout is 10 seconds.
func BuildSafeClient() (*http.Client, error) {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(10 * time.Second).
		SetCheckRedirect(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}).
		Build()
	return safeurl.Client(cfg).Client, nil
}

// WebhookObserver subscribes to the EventBus and POSTs every event to a
// single configured URL, HMAC-signed so recipients can verify delivery
// authenticity. Like the websocket Gateway, it is a plain subscriber:
// a slow or unreachable endpoint loses events rather than blocking a
// worker (the bus already drops on overflow; the same best-effort
// policy extends to delivery failures here).
type WebhookObserver struct {
	url           string
	signingSecret string
	client        *http.Client
}

// NewWebhookObserver returns a WebhookObserver posting to url, signed
// with signingSecret.
func NewWebhookObserver(url, signingSecret string, client *http.Client) *WebhookObserver {
	return &WebhookObserver{url: url, signingSecret: signingSecret, client: client}
}

// Run subscribes to bus and delivers events until ctx is cancelled.
func (w *WebhookObserver) Run(ctx context.Context, bus *eventbus.Bus) {
	sub := bus.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := w.deliver(ctx, ev); err != nil {
				slog.Warn("webhook delivery failed", "event_type", ev.Type, "job_id", ev.JobID, "error", err)
			}
		}
	}
}

func (w *WebhookObserver) deliver(ctx context.Context, ev eventbus.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(w.signingSecret))
	mac.Write([]byte(ts + "." + string(payload)))
	req.Header.Set("X-Fluxqueue-Timestamp", ts)
	req.Header.Set("X-Fluxqueue-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := w.client.Do(req) //nolint:gosec // G107: SSRF is enforced architecturally by the safeurl-wrapped client injected at startup
	if err != nil {
		return fmt.Errorf("webhook POST: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck,gosec // G104: discard errors are irrelevant for io.Discard writes

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook POST: unexpected status %d", resp.StatusCode)
	}
	return nil
}
