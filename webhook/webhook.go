// Package webhook delivers batch results to caller-supplied URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/phoneprice/config"
)

// EventPhonesParsed is sent once a batch has been processed.
const EventPhonesParsed = "phones.parsed"

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Phoneprice-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events with retries. The zero value is not usable;
// create one with New.
type Notifier struct {
	secret  string
	client  *http.Client
	timeout time.Duration

	// delays[i] is the wait before attempt i+1.
	delays []time.Duration

	wg sync.WaitGroup
}

// New creates a Notifier from cfg. MaxRetries retries follow the first
// attempt, spaced 1s, 5s, 30s and 30s thereafter.
func New(cfg config.WebhookConfig) *Notifier {
	delays := []time.Duration{0}
	backoff := []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}
	for i := 0; i < cfg.MaxRetries; i++ {
		delays = append(delays, backoff[min(i, len(backoff)-1)])
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		secret:  cfg.Secret,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		delays:  delays,
	}
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if a secret is configured.
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Phoneprice-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event in the background, retrying on failure.
func (n *Notifier) DeliverAsync(url string, event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			err := n.Deliver(ctx, url, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"job_id", event.JobID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"job_id", event.JobID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"job_id", event.JobID,
		)
	}()
}

// Wait blocks until all background deliveries have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
