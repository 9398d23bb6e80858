// Package retry computes retry decisions and backoff delays from a
// provider's transfer profile. The coordinator is advisory: it knows attempt
// counts and profiles, never failure causes — classifying an error as
// retriable is the caller's job.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

// JitterFunc perturbs a computed delay. The result is clamped to the
// profile's MaxDelay and floored at zero; a jitter hook cannot push a delay
// past the ceiling.
type JitterFunc func(d time.Duration) time.Duration

// Coordinator decides whether and when to retry. Deterministic by default:
// identical (attempt, profile) inputs yield identical delays.
type Coordinator struct {
	logger    *log.Logger
	collector *metrics.Collector
	jitter    JitterFunc
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithJitter installs a delay perturbation hook.
func WithJitter(fn JitterFunc) CoordinatorOption {
	return func(c *Coordinator) { c.jitter = fn }
}

// NewCoordinator creates a coordinator. logger and collector may be nil.
func NewCoordinator(logger *log.Logger, collector *metrics.Collector, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{logger: logger, collector: collector}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldRetry reports whether another attempt is allowed after attempt
// failures. attempt is 1-based: after the first failure attempt is 1.
func (c *Coordinator) ShouldRetry(attempt int, profile types.ProviderProfile) bool {
	return attempt >= 1 && attempt < profile.MaxAttempts
}

// Delay computes the backoff before retry number attempt:
// min(BaseDelay * BackoffFactor^(attempt-1), MaxDelay). Monotone
// non-decreasing in attempt and never above the ceiling.
func (c *Coordinator) Delay(attempt int, profile types.ProviderProfile) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := profile.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	ceiling := profile.MaxDelay
	if ceiling <= 0 {
		ceiling = base
	}
	factor := profile.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	scaled := float64(base) * math.Pow(factor, float64(attempt-1))
	d := ceiling
	// Overflow guard: Pow grows past the duration range quickly.
	if scaled < float64(ceiling) {
		d = time.Duration(scaled)
	}

	if c.jitter != nil {
		d = c.jitter(d)
		if d > ceiling {
			d = ceiling
		}
		if d < 0 {
			d = 0
		}
	}
	return d
}

// Next combines the retry decision and delay for a failed attempt, recording
// the retry in metrics when one is granted.
func (c *Coordinator) Next(attempt int, profile types.ProviderProfile) (time.Duration, bool) {
	if !c.ShouldRetry(attempt, profile) {
		return 0, false
	}
	d := c.Delay(attempt, profile)
	c.collector.IncRetry()
	c.logger.Info("retry scheduled", map[string]any{
		"attempt":  attempt + 1,
		"max":      profile.MaxAttempts,
		"delay":    d.String(),
		"provider": string(profile.Provider),
	})
	return d, true
}

// Wait sleeps for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
