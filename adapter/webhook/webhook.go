// Package webhook posts transfer completion events to an HTTP endpoint.
//
// Delivery is at-least-once from the caller's perspective: transient
// failures (network errors, 5xx) are retried with exponential backoff,
// while 4xx responses abort immediately since resending the same payload
// cannot succeed.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/justapithecus/drover/adapter"
	"github.com/justapithecus/drover/iox"
)

const (
	// DefaultTimeout bounds a single POST, not the whole retry sequence.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the retry budget on top of the first attempt.
	DefaultRetries = 3

	baseBackoff = 500 * time.Millisecond
)

// Config configures the webhook adapter.
type Config struct {
	// URL is the endpoint events are POSTed to (required).
	URL string
	// Headers are added to every request, e.g. for auth tokens.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the retry budget on failure (default 0; callers that
	// want the package default pass DefaultRetries explicitly).
	Retries int
}

// Adapter delivers transfer completion events over HTTP.
type Adapter struct {
	config Config
	client *http.Client
}

// StatusError reports a non-2xx response. The code lets the retry loop
// tell retriable 5xx from terminal 4xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// New validates the config and builds the adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish POSTs the event as JSON, retrying transient failures until the
// budget runs out or ctx is done.
func (a *Adapter) Publish(ctx context.Context, event *adapter.TransferCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleepBackoff(ctx, i); err != nil {
				return fmt.Errorf("webhook: context canceled during backoff: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: context canceled: %w", err)
		}

		lastErr = a.post(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}
	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *Adapter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// sleepBackoff waits 500ms * 2^(retry-1) or until ctx is done.
func sleepBackoff(ctx context.Context, retry int) error {
	d := time.Duration(1<<uint(retry-1)) * baseBackoff
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
