package cmd

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/cli/config"
)

// newTestContext wires a bare flag set into a cli.Context. Flags must be
// declared before they can be set; setFlags assigns values and marks them
// as explicitly set.
func newTestContext(t *testing.T, declare func(fs *flag.FlagSet), setFlags map[string]string) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	declare(fs)
	for name, value := range setFlags {
		if err := fs.Set(name, value); err != nil {
			t.Fatalf("set flag %s: %v", name, err)
		}
	}
	return cli.NewContext(nil, fs, nil)
}

func declareArchiveFlags(fs *flag.FlagSet) {
	fs.String("archive-backend", "", "")
	fs.String("archive-path", "", "")
	fs.String("archive-dataset", "", "")
	fs.String("archive-region", "", "")
	fs.String("archive-endpoint", "", "")
	fs.Bool("archive-path-style", false, "")
}

func declareNetworkFlags(fs *flag.FlagSet) {
	fs.Int64("bandwidth", 0, "")
	fs.Duration("latency", 0, "")
	fs.Float64("loss", 0, "")
	fs.Bool("shared", false, "")
	fs.String("probe-url", "", "")
	fs.String("probe-bucket", "", "")
	fs.String("probe-region", "", "")
}

func TestArchiveChoiceFrom_FlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{
		Archive: config.ArchiveConfig{
			Backend: "s3",
			Path:    "config-bucket/prefix",
			Dataset: "config-dataset",
		},
	}

	c := newTestContext(t, declareArchiveFlags, map[string]string{
		"archive-backend": "fs",
		"archive-path":    "/var/lib/drover",
	})

	choice := archiveChoiceFrom(c, cfg)
	if choice.backend != "fs" {
		t.Errorf("backend = %q, flag should win", choice.backend)
	}
	if choice.path != "/var/lib/drover" {
		t.Errorf("path = %q, flag should win", choice.path)
	}
	// Unset flags fall back to config
	if choice.dataset != "config-dataset" {
		t.Errorf("dataset = %q, want config value", choice.dataset)
	}
}

func TestArchiveChoiceFrom_DefaultDataset(t *testing.T) {
	c := newTestContext(t, declareArchiveFlags, nil)
	choice := archiveChoiceFrom(c, &config.Config{})
	if choice.dataset == "" {
		t.Error("expected a default dataset name")
	}
	if choice.enabled() {
		t.Error("choice without backend should be disabled")
	}
}

func TestBuildArchiveStore_FS(t *testing.T) {
	choice := archiveChoice{backend: "fs", path: t.TempDir(), dataset: "test-transfers"}
	store, err := buildArchiveStore(context.Background(), choice, nil, nil)
	if err != nil {
		t.Fatalf("buildArchiveStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("expected a store")
	}
}

func TestBuildArchiveStore_MissingPath(t *testing.T) {
	choice := archiveChoice{backend: "fs", dataset: "test-transfers"}
	_, err := buildArchiveStore(context.Background(), choice, nil, nil)
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestBuildArchiveStore_UnknownBackend(t *testing.T) {
	choice := archiveChoice{backend: "tape", path: "/somewhere", dataset: "test-transfers"}
	_, err := buildArchiveStore(context.Background(), choice, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "tape") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestResolveConditions_FlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{
		Network: config.NetworkConfig{
			BandwidthBPS: 1000,
			Latency:      config.Duration{Duration: 10 * time.Millisecond},
			LossFraction: 0.5,
		},
	}

	c := newTestContext(t, declareNetworkFlags, map[string]string{
		"bandwidth": "500000",
		"loss":      "0.02",
		"shared":    "true",
	})

	conditions, err := resolveConditions(context.Background(), c, cfg, nil)
	if err != nil {
		t.Fatalf("resolveConditions failed: %v", err)
	}
	if conditions.BandwidthBPS != 500000 {
		t.Errorf("bandwidth = %d, flag should win", conditions.BandwidthBPS)
	}
	if conditions.LossFraction != 0.02 {
		t.Errorf("loss = %g, flag should win", conditions.LossFraction)
	}
	if !conditions.SharedConnection {
		t.Error("expected shared connection from flag")
	}
	// Unset flag falls back to config
	if conditions.Latency != 10*time.Millisecond {
		t.Errorf("latency = %v, want config value", conditions.Latency)
	}
}

func TestResolveConditions_InvalidLoss(t *testing.T) {
	c := newTestContext(t, declareNetworkFlags, map[string]string{"loss": "1.5"})
	_, err := resolveConditions(context.Background(), c, &config.Config{}, nil)
	if err == nil {
		t.Fatal("expected validation error for loss > 1")
	}
}

func TestResolveConditions_HTTPProbeRefinesLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestContext(t, declareNetworkFlags, map[string]string{
		"probe-url": srv.URL,
		"bandwidth": "250000",
	})

	conditions, err := resolveConditions(context.Background(), c, &config.Config{}, nil)
	if err != nil {
		t.Fatalf("resolveConditions failed: %v", err)
	}
	if conditions.Latency <= 0 {
		t.Error("expected probe to measure a positive latency")
	}
	// Declared fields pass through the probe untouched
	if conditions.BandwidthBPS != 250000 {
		t.Errorf("bandwidth = %d, want declared 250000", conditions.BandwidthBPS)
	}
}

func TestResolveConditions_ProbeFailure(t *testing.T) {
	c := newTestContext(t, declareNetworkFlags, map[string]string{
		"probe-url": "http://127.0.0.1:1",
	})
	_, err := resolveConditions(context.Background(), c, &config.Config{}, nil)
	if err == nil {
		t.Fatal("expected probe failure to surface")
	}
}

func TestLoadConfig_NoFlagGivesEmptyConfig(t *testing.T) {
	c := newTestContext(t, func(fs *flag.FlagSet) { fs.String("config", "", "") }, nil)
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Repository != "" {
		t.Errorf("expected empty config, got repository %q", cfg.Repository)
	}
}
