package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/drover/types"
)

// Config represents a drover.yaml configuration file.
// All values are optional and act as defaults for drover run flags.
// CLI flags always override config values.
type Config struct {
	Repository string                   `yaml:"repository"`
	Binary     string                   `yaml:"binary"`
	WorkingDir string                   `yaml:"working_dir"`
	Archive    ArchiveConfig            `yaml:"archive"`
	Adapter    AdapterConfig            `yaml:"adapter"`
	Network    NetworkConfig            `yaml:"network"`
	Profiles   map[string]ProfileConfig `yaml:"profiles"`
}

// ArchiveConfig holds transfer-history storage defaults.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion-event adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// NetworkConfig holds declared link conditions plus probe defaults.
// Bandwidth, loss, and shared flags are declared here; the probe only
// refines latency.
type NetworkConfig struct {
	BandwidthBPS     int64    `yaml:"bandwidth_bps"`
	Latency          Duration `yaml:"latency"`
	LossFraction     float64  `yaml:"loss_fraction"`
	SharedConnection bool     `yaml:"shared_connection"`

	ProbeURL     string `yaml:"probe_url,omitempty"`
	ProbeBucket  string `yaml:"probe_bucket,omitempty"`
	ProbeRegion  string `yaml:"probe_region,omitempty"`
	ProbeSamples int    `yaml:"probe_samples,omitempty"`
}

// Conditions converts the declared network section into NetworkConditions.
func (n *NetworkConfig) Conditions() types.NetworkConditions {
	return types.NetworkConditions{
		BandwidthBPS:     n.BandwidthBPS,
		Latency:          n.Latency.Duration,
		LossFraction:     n.LossFraction,
		SharedConnection: n.SharedConnection,
	}
}

// ProfileConfig is a per-provider profile override within the config file.
// The provider is derived from the map key. Only set fields override the
// built-in defaults; zero values leave the default untouched.
type ProfileConfig struct {
	ChunkSize     *int64   `yaml:"chunk_size,omitempty"`
	MaxConcurrent *int     `yaml:"max_concurrent,omitempty"`
	MaxAttempts   *int     `yaml:"max_attempts,omitempty"`
	BaseDelay     Duration `yaml:"base_delay,omitempty"`
	MaxDelay      Duration `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Compression   string   `yaml:"compression,omitempty"`
	RateLimit     *int64   `yaml:"rate_limit,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty"`
}

// Apply overlays the set override fields onto a base profile and returns
// the result. The base is never mutated.
func (pc *ProfileConfig) Apply(base types.ProviderProfile) types.ProviderProfile {
	out := base
	if pc.ChunkSize != nil {
		out.ChunkSize = *pc.ChunkSize
	}
	if pc.MaxConcurrent != nil {
		out.MaxConcurrent = *pc.MaxConcurrent
	}
	if pc.MaxAttempts != nil {
		out.MaxAttempts = *pc.MaxAttempts
	}
	if pc.BaseDelay.Duration != 0 {
		out.BaseDelay = pc.BaseDelay.Duration
	}
	if pc.MaxDelay.Duration != 0 {
		out.MaxDelay = pc.MaxDelay.Duration
	}
	if pc.BackoffFactor != nil {
		out.BackoffFactor = *pc.BackoffFactor
	}
	if pc.Compression != "" {
		out.Compression = types.CompressionLevel(pc.Compression)
	}
	if pc.RateLimit != nil {
		out.RateLimit = *pc.RateLimit
	}
	if pc.Timeout.Duration != 0 {
		out.Timeout = pc.Timeout.Duration
	}
	return out
}

// Profile returns the effective profile for a provider: the built-in
// default overlaid with any config-file override keyed by provider name.
func (c *Config) Profile(provider types.Provider) types.ProviderProfile {
	profile := types.DefaultProfile(provider)
	if pc, ok := c.Profiles[string(provider)]; ok {
		profile = pc.Apply(profile)
	}
	return profile
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
