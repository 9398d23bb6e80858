// Package probe samples network conditions for the tuner. Probes measure
// round-trip latency only; bandwidth, loss, and connection sharing come from
// configuration, since measuring them would mean moving real payload.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/justapithecus/drover/iox"
	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/types"
)

// DefaultSamples is how many round trips a probe averages.
const DefaultSamples = 3

// DefaultTimeout bounds one probe round trip.
const DefaultTimeout = 5 * time.Second

// Sampler produces a NetworkConditions reading.
type Sampler interface {
	// Sample measures or reports current conditions.
	Sample(ctx context.Context) (types.NetworkConditions, error)
}

// Static returns fixed conditions from configuration.
type Static struct {
	Conditions types.NetworkConditions
}

// Sample returns the configured conditions unchanged.
func (s *Static) Sample(context.Context) (types.NetworkConditions, error) {
	if err := s.Conditions.Validate(); err != nil {
		return types.NetworkConditions{}, err
	}
	return s.Conditions, nil
}

// HTTP measures latency with HEAD requests against a backend endpoint.
// Non-latency fields are copied from Base.
type HTTP struct {
	// URL is the endpoint to probe.
	URL string
	// Base supplies the configured non-latency fields.
	Base types.NetworkConditions
	// Samples overrides the round-trip count (default 3).
	Samples int
	// Client overrides the HTTP client (default 5s timeout).
	Client *http.Client

	Logger *log.Logger
}

// Sample performs the HEAD round trips and returns Base with the measured
// mean latency filled in.
func (h *HTTP) Sample(ctx context.Context) (types.NetworkConditions, error) {
	if h.URL == "" {
		return types.NetworkConditions{}, fmt.Errorf("probe: url is required")
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	latency, err := meanLatency(ctx, h.samples(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		iox.DrainClose(resp.Body)
		return nil
	})
	if err != nil {
		return types.NetworkConditions{}, fmt.Errorf("probe: head %s: %w", h.URL, err)
	}

	out := h.Base
	out.Latency = latency
	h.Logger.Debug("latency probed", map[string]any{
		"url":     h.URL,
		"latency": latency.String(),
	})
	return out, nil
}

func (h *HTTP) samples() int {
	if h.Samples > 0 {
		return h.Samples
	}
	return DefaultSamples
}

// meanLatency times n sequential round trips of fn.
func meanLatency(ctx context.Context, n int, fn func(context.Context) error) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()
		if err := fn(ctx); err != nil {
			return 0, err
		}
		total += time.Since(start)
	}
	return total / time.Duration(n), nil
}
