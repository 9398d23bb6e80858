// Package redis broadcasts transfer completion events over Redis pub/sub.
//
// Unlike the webhook adapter there is no terminal failure class: PUBLISH
// either reaches the server or it does not, so every failure is retried
// until the budget runs out.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/drover/adapter"
)

const (
	// DefaultChannel receives events when no channel is configured.
	DefaultChannel = "drover:transfer_completed"
	// DefaultTimeout bounds a single PUBLISH.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the retry budget on top of the first attempt.
	DefaultRetries = 3

	baseBackoff = 500 * time.Millisecond
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the connection URL: redis://[:password@]host:port[/db] (required).
	URL string
	// Channel is the pub/sub channel (default drover:transfer_completed).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the retry budget on failure.
	Retries int
}

// Adapter delivers transfer completion events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates the config, parses the connection URL, and builds the
// adapter. No connection is made until the first publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as JSON to the configured channel, retrying
// with exponential backoff until the budget runs out or ctx is done.
func (a *Adapter) Publish(ctx context.Context, event *adapter.TransferCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 1 + a.config.Retries
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			d := time.Duration(1<<uint(i-1)) * baseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(d):
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		lastErr = a.publishOnce(ctx, body)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

func (a *Adapter) publishOnce(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.client.Publish(ctx, a.config.Channel, body).Err()
}

// Close closes the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}
