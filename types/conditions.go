package types

import (
	"fmt"
	"time"
)

// NetworkConditions describes the link a transfer must cross. Conditions are
// supplied by configuration or measured by a probe; the tuner treats them as
// ground truth and never mutates them.
type NetworkConditions struct {
	// BandwidthBPS is available upstream bandwidth in bytes per second.
	// Zero means unknown.
	BandwidthBPS int64 `json:"bandwidth_bps" msgpack:"bandwidth_bps" yaml:"bandwidth_bps"`
	// Latency is the round-trip time to the backend. Zero means unknown.
	Latency time.Duration `json:"latency" msgpack:"latency" yaml:"latency"`
	// LossFraction is observed packet loss in [0, 1].
	LossFraction float64 `json:"loss_fraction" msgpack:"loss_fraction" yaml:"loss_fraction"`
	// SharedConnection is set when the link carries other traffic that the
	// transfer should leave headroom for.
	SharedConnection bool `json:"shared_connection" msgpack:"shared_connection" yaml:"shared_connection"`
}

// Validate checks conditions for physically meaningful values.
func (c *NetworkConditions) Validate() error {
	if c.BandwidthBPS < 0 {
		return fmt.Errorf("network conditions: bandwidth_bps must not be negative, got %d", c.BandwidthBPS)
	}
	if c.Latency < 0 {
		return fmt.Errorf("network conditions: latency must not be negative, got %s", c.Latency)
	}
	if c.LossFraction < 0 || c.LossFraction > 1 {
		return fmt.Errorf("network conditions: loss_fraction must be in [0, 1], got %g", c.LossFraction)
	}
	return nil
}

// Zero reports whether no condition has been observed at all.
func (c *NetworkConditions) Zero() bool {
	return c.BandwidthBPS == 0 && c.Latency == 0 && c.LossFraction == 0 && !c.SharedConnection
}
