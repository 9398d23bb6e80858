package types //nolint:revive // types is a valid package name

import (
	"testing"
	"time"
)

func TestDefaultProfile_S3(t *testing.T) {
	p := DefaultProfile(ProviderS3)

	// The S3 schedule is load-bearing: 1s base doubling to a 30s ceiling.
	if p.MaxAttempts != 5 {
		t.Errorf("s3 max_attempts = %d, want 5", p.MaxAttempts)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("s3 base_delay = %s, want 1s", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("s3 max_delay = %s, want 30s", p.MaxDelay)
	}
	if p.BackoffFactor != 2.0 {
		t.Errorf("s3 backoff_factor = %g, want 2.0", p.BackoffFactor)
	}
	if p.Provider != ProviderS3 {
		t.Errorf("s3 profile stamped with %q", p.Provider)
	}
}

func TestDefaultProfile_AllKnownValid(t *testing.T) {
	for _, provider := range KnownProviders() {
		p := DefaultProfile(provider)
		if err := p.Validate(); err != nil {
			t.Errorf("built-in profile for %s invalid: %v", provider, err)
		}
		if p.Provider != provider {
			t.Errorf("profile for %s stamped with %q", provider, p.Provider)
		}
	}
}

func TestDefaultProfile_UnknownFallsBack(t *testing.T) {
	p := DefaultProfile(Provider("tape"))
	if err := p.Validate(); err != nil {
		t.Errorf("fallback profile invalid: %v", err)
	}
	if p.Provider != Provider("tape") {
		t.Errorf("fallback should keep the requested provider, got %q", p.Provider)
	}
}

func TestDefaultProfiles_ReturnsCopy(t *testing.T) {
	first := DefaultProfiles()
	first[ProviderS3] = ProviderProfile{Provider: ProviderS3, MaxAttempts: 99}

	second := DefaultProfiles()
	if second[ProviderS3].MaxAttempts == 99 {
		t.Error("mutating the returned table leaked into the built-ins")
	}
}

func TestProviderProfile_Validate(t *testing.T) {
	base := DefaultProfile(ProviderS3)

	tests := []struct {
		name   string
		mutate func(*ProviderProfile)
	}{
		{"zero chunk", func(p *ProviderProfile) { p.ChunkSize = 0 }},
		{"zero concurrency", func(p *ProviderProfile) { p.MaxConcurrent = 0 }},
		{"zero attempts", func(p *ProviderProfile) { p.MaxAttempts = 0 }},
		{"zero base delay", func(p *ProviderProfile) { p.BaseDelay = 0 }},
		{"max below base", func(p *ProviderProfile) { p.MaxDelay = p.BaseDelay - 1 }},
		{"factor below one", func(p *ProviderProfile) { p.BackoffFactor = 0.5 }},
		{"bad compression", func(p *ProviderProfile) { p.Compression = "zstd-11" }},
		{"negative rate limit", func(p *ProviderProfile) { p.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCompressionLevel_Valid(t *testing.T) {
	for _, c := range []CompressionLevel{CompressionOff, CompressionAuto, CompressionMax} {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if CompressionLevel("turbo").Valid() {
		t.Error("unknown level should be invalid")
	}
}

func TestNetworkConditions_Validate(t *testing.T) {
	good := NetworkConditions{BandwidthBPS: 500_000, Latency: 300 * time.Millisecond, LossFraction: 0.02}
	if err := good.Validate(); err != nil {
		t.Errorf("valid conditions rejected: %v", err)
	}

	tests := []struct {
		name string
		cond NetworkConditions
	}{
		{"negative bandwidth", NetworkConditions{BandwidthBPS: -1}},
		{"negative latency", NetworkConditions{Latency: -time.Millisecond}},
		{"loss above one", NetworkConditions{LossFraction: 1.5}},
		{"negative loss", NetworkConditions{LossFraction: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cond.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNetworkConditions_Zero(t *testing.T) {
	if !(&NetworkConditions{}).Zero() {
		t.Error("empty conditions should be zero")
	}
	if (&NetworkConditions{SharedConnection: true}).Zero() {
		t.Error("shared connection is an observation")
	}
}
