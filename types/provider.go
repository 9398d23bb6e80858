package types

import (
	"fmt"
	"time"
)

// Provider identifies a storage backend family. Transfer behavior is tuned
// per provider because their throttling and failure characteristics differ.
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderB2    Provider = "b2"
	ProviderAzure Provider = "azure"
	ProviderGCS   Provider = "gcs"
	ProviderSFTP  Provider = "sftp"
	ProviderREST  Provider = "rest"
	ProviderLocal Provider = "local"
)

// CompressionLevel mirrors the backup tool's compression modes.
type CompressionLevel string

const (
	CompressionOff  CompressionLevel = "off"
	CompressionAuto CompressionLevel = "auto"
	CompressionMax  CompressionLevel = "max"
)

// Valid reports whether c is a known compression level.
func (c CompressionLevel) Valid() bool {
	switch c {
	case CompressionOff, CompressionAuto, CompressionMax:
		return true
	default:
		return false
	}
}

// ProviderProfile is the complete transfer parameter set for one backend.
// Profiles are plain values: tuning returns an adjusted copy and never
// mutates its input.
type ProviderProfile struct {
	// Provider is the backend this profile applies to.
	Provider Provider `json:"provider" msgpack:"provider" yaml:"provider"`
	// ChunkSize is the upload chunk/pack size in bytes.
	ChunkSize int64 `json:"chunk_size" msgpack:"chunk_size" yaml:"chunk_size"`
	// MaxConcurrent is the number of parallel backend connections.
	MaxConcurrent int `json:"max_concurrent" msgpack:"max_concurrent" yaml:"max_concurrent"`
	// MaxAttempts bounds total tries per operation, first try included.
	MaxAttempts int `json:"max_attempts" msgpack:"max_attempts" yaml:"max_attempts"`
	// BaseDelay seeds the exponential backoff schedule.
	BaseDelay time.Duration `json:"base_delay" msgpack:"base_delay" yaml:"base_delay"`
	// MaxDelay caps every backoff delay, jitter included.
	MaxDelay time.Duration `json:"max_delay" msgpack:"max_delay" yaml:"max_delay"`
	// BackoffFactor is the per-attempt delay multiplier.
	BackoffFactor float64 `json:"backoff_factor" msgpack:"backoff_factor" yaml:"backoff_factor"`
	// Compression selects the backup tool's compression mode.
	Compression CompressionLevel `json:"compression" msgpack:"compression" yaml:"compression"`
	// RateLimit caps upload throughput in bytes per second. Zero is
	// unlimited.
	RateLimit int64 `json:"rate_limit" msgpack:"rate_limit" yaml:"rate_limit"`
	// Timeout is the watchdog limit for a single attempt.
	Timeout time.Duration `json:"timeout" msgpack:"timeout" yaml:"timeout"`
}

// Validate checks a profile for internally consistent values.
func (p *ProviderProfile) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("provider profile: chunk_size must be positive, got %d", p.ChunkSize)
	}
	if p.MaxConcurrent < 1 {
		return fmt.Errorf("provider profile: max_concurrent must be at least 1, got %d", p.MaxConcurrent)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("provider profile: max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("provider profile: base_delay must be positive, got %s", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("provider profile: max_delay %s must not undercut base_delay %s", p.MaxDelay, p.BaseDelay)
	}
	if p.BackoffFactor < 1 {
		return fmt.Errorf("provider profile: backoff_factor must be at least 1, got %g", p.BackoffFactor)
	}
	if p.Compression != "" && !p.Compression.Valid() {
		return fmt.Errorf("provider profile: invalid compression %q", p.Compression)
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("provider profile: rate_limit must not be negative, got %d", p.RateLimit)
	}
	return nil
}

const mib = 1 << 20

// builtinProfiles holds the shipped per-provider defaults. S3-compatible
// backends retry aggressively with short initial delays; SFTP gets fewer
// connections and longer timeouts; local repositories barely retry because
// their failures are rarely transient.
var builtinProfiles = map[Provider]ProviderProfile{
	ProviderS3: {
		Provider:      ProviderS3,
		ChunkSize:     16 * mib,
		MaxConcurrent: 5,
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
	ProviderB2: {
		Provider:      ProviderB2,
		ChunkSize:     16 * mib,
		MaxConcurrent: 5,
		MaxAttempts:   6,
		BaseDelay:     2 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
	ProviderAzure: {
		Provider:      ProviderAzure,
		ChunkSize:     16 * mib,
		MaxConcurrent: 4,
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
	ProviderGCS: {
		Provider:      ProviderGCS,
		ChunkSize:     16 * mib,
		MaxConcurrent: 4,
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
	ProviderSFTP: {
		Provider:      ProviderSFTP,
		ChunkSize:     8 * mib,
		MaxConcurrent: 2,
		MaxAttempts:   4,
		BaseDelay:     2 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       10 * time.Minute,
	},
	ProviderREST: {
		Provider:      ProviderREST,
		ChunkSize:     16 * mib,
		MaxConcurrent: 4,
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
	ProviderLocal: {
		Provider:      ProviderLocal,
		ChunkSize:     32 * mib,
		MaxConcurrent: 2,
		MaxAttempts:   2,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	},
}

// DefaultProfile returns the shipped profile for p. Unknown providers get a
// conservative generic profile stamped with the requested provider so the
// engine always has workable parameters.
func DefaultProfile(p Provider) ProviderProfile {
	if profile, ok := builtinProfiles[p]; ok {
		return profile
	}
	return ProviderProfile{
		Provider:      p,
		ChunkSize:     16 * mib,
		MaxConcurrent: 4,
		MaxAttempts:   4,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Compression:   CompressionAuto,
		Timeout:       5 * time.Minute,
	}
}

// DefaultProfiles returns a copy of the full built-in profile table.
func DefaultProfiles() map[Provider]ProviderProfile {
	out := make(map[Provider]ProviderProfile, len(builtinProfiles))
	for k, v := range builtinProfiles {
		out[k] = v
	}
	return out
}

// KnownProviders lists the providers with shipped profiles, in stable order.
func KnownProviders() []Provider {
	return []Provider{
		ProviderS3,
		ProviderB2,
		ProviderAzure,
		ProviderGCS,
		ProviderSFTP,
		ProviderREST,
		ProviderLocal,
	}
}
