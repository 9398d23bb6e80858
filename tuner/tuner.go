// Package tuner derives transfer parameters from observed network
// conditions. Tuning is pure computation: the same profile and conditions
// always produce the same tuned profile, and no adjustment performs I/O.
package tuner

import (
	"time"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/types"
)

// Bandwidth tiers, bytes per second.
const (
	lowBandwidthBPS      = 1 << 20 // 1 MiB/s
	criticalBandwidthBPS = 256 << 10
)

// Chunk and concurrency ceilings per bandwidth tier.
const (
	lowBandwidthChunk      = 1 << 20
	criticalBandwidthChunk = 256 << 10

	lowBandwidthConcurrency      = 2
	criticalBandwidthConcurrency = 1
)

// highLatencyThreshold is where round-trip cost starts dominating small
// requests and pipelining pays for itself.
const highLatencyThreshold = 150 * time.Millisecond

// Floors applied by DegradeForRetry.
const (
	minChunkSize  = 128 << 10
	minConcurrent = 1
)

// Tuner adjusts provider profiles for current network conditions.
type Tuner struct {
	logger *log.Logger
}

// New creates a tuner. logger may be nil.
func New(logger *log.Logger) *Tuner {
	return &Tuner{logger: logger}
}

// Tune returns a copy of profile adjusted for conditions. Adjustments apply
// in a fixed order and the most restrictive value wins on contested fields:
//
//   - low bandwidth (two tiers) caps chunk size and concurrency and forces
//     compression on, trading CPU for bytes on the wire
//   - high latency raises concurrency to hide round trips, unless a
//     bandwidth tier already lowered it, and extends the timeout
//   - nonzero loss raises the attempt budget and base delay
//   - a shared connection caps the transfer rate at half the bandwidth
//
// Zero conditions return the profile unchanged.
func (t *Tuner) Tune(profile types.ProviderProfile, conditions types.NetworkConditions) types.ProviderProfile {
	tuned := profile
	if conditions.Zero() {
		return tuned
	}

	bandwidthLimited := false
	if bw := conditions.BandwidthBPS; bw > 0 {
		switch {
		case bw < criticalBandwidthBPS:
			bandwidthLimited = true
			tuned.ChunkSize = minInt64(tuned.ChunkSize, criticalBandwidthChunk)
			tuned.MaxConcurrent = minInt(tuned.MaxConcurrent, criticalBandwidthConcurrency)
			tuned.Compression = types.CompressionMax
		case bw < lowBandwidthBPS:
			bandwidthLimited = true
			tuned.ChunkSize = minInt64(tuned.ChunkSize, lowBandwidthChunk)
			tuned.MaxConcurrent = minInt(tuned.MaxConcurrent, lowBandwidthConcurrency)
			if tuned.Compression == types.CompressionOff {
				tuned.Compression = types.CompressionAuto
			}
		}
	}

	if conditions.Latency > highLatencyThreshold {
		if !bandwidthLimited {
			tuned.MaxConcurrent = profile.MaxConcurrent + 2
		}
		tuned.Timeout = extendTimeout(profile.Timeout, conditions.Latency)
	}

	if conditions.LossFraction > 0 {
		tuned.MaxAttempts = profile.MaxAttempts + 2
		tuned.BaseDelay = profile.BaseDelay * 2
		if tuned.BaseDelay > tuned.MaxDelay {
			tuned.BaseDelay = tuned.MaxDelay
		}
	}

	if conditions.SharedConnection && conditions.BandwidthBPS > 0 {
		tuned.RateLimit = conditions.BandwidthBPS / 2
	}

	t.logger.Debug("profile tuned", map[string]any{
		"provider":    string(profile.Provider),
		"chunk_size":  tuned.ChunkSize,
		"concurrency": tuned.MaxConcurrent,
		"attempts":    tuned.MaxAttempts,
		"rate_limit":  tuned.RateLimit,
	})
	return tuned
}

// DegradeForRetry returns a reduced-aggressiveness profile for re-attempting
// after a timed-out run: halved chunk size and concurrency with floors, and
// a longer timeout.
func (t *Tuner) DegradeForRetry(profile types.ProviderProfile) types.ProviderProfile {
	degraded := profile

	degraded.ChunkSize = profile.ChunkSize / 2
	if degraded.ChunkSize < minChunkSize {
		degraded.ChunkSize = minChunkSize
	}
	degraded.MaxConcurrent = profile.MaxConcurrent / 2
	if degraded.MaxConcurrent < minConcurrent {
		degraded.MaxConcurrent = minConcurrent
	}
	if profile.Timeout > 0 {
		degraded.Timeout = profile.Timeout * 3 / 2
	}

	t.logger.Debug("profile degraded for retry", map[string]any{
		"provider":    string(profile.Provider),
		"chunk_size":  degraded.ChunkSize,
		"concurrency": degraded.MaxConcurrent,
	})
	return degraded
}

// extendTimeout stretches the watchdog in proportion to observed latency:
// each 100ms of round trip adds 20% of the original budget.
func extendTimeout(timeout time.Duration, latency time.Duration) time.Duration {
	if timeout <= 0 {
		return timeout
	}
	steps := int64(latency / (100 * time.Millisecond))
	if steps < 1 {
		steps = 1
	}
	extra := timeout / 5 * time.Duration(steps)
	return timeout + extra
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
