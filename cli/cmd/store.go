package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/archive"
	"github.com/justapithecus/drover/cli/config"
	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/probe"
	"github.com/justapithecus/drover/types"
)

// archiveChoice holds the resolved transfer-history store configuration,
// flags overlaid on config file values.
type archiveChoice struct {
	backend   string
	path      string
	dataset   string
	region    string
	endpoint  string
	pathStyle bool
}

func archiveChoiceFrom(c *cli.Context, cfg *config.Config) archiveChoice {
	choice := archiveChoice{
		backend:   firstNonEmpty(c.String("archive-backend"), cfg.Archive.Backend),
		path:      firstNonEmpty(c.String("archive-path"), cfg.Archive.Path),
		dataset:   firstNonEmpty(c.String("archive-dataset"), cfg.Archive.Dataset),
		region:    firstNonEmpty(c.String("archive-region"), cfg.Archive.Region),
		endpoint:  firstNonEmpty(c.String("archive-endpoint"), cfg.Archive.Endpoint),
		pathStyle: c.Bool("archive-path-style") || cfg.Archive.S3PathStyle,
	}
	if choice.dataset == "" {
		choice.dataset = archive.DefaultDataset
	}
	return choice
}

func (a archiveChoice) enabled() bool {
	return a.backend != ""
}

// buildArchiveStore creates the history store for the chosen backend.
func buildArchiveStore(ctx context.Context, choice archiveChoice, logger *log.Logger, collector *metrics.Collector) (*archive.Store, error) {
	if choice.path == "" {
		return nil, fmt.Errorf("--archive-path is required for the %s archive backend", choice.backend)
	}

	switch choice.backend {
	case "fs":
		return archive.NewStore(choice.dataset, choice.path, logger, collector)
	case "s3":
		bucket, prefix := archive.ParseS3Path(choice.path)
		return archive.NewS3Store(ctx, choice.dataset, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.pathStyle,
		}, logger, collector)
	default:
		return nil, fmt.Errorf("unknown archive-backend: %s (must be fs or s3)", choice.backend)
	}
}

// resolveConditions builds NetworkConditions from config and flags, then
// optionally refines latency with a probe. Flags always win over config.
func resolveConditions(ctx context.Context, c *cli.Context, cfg *config.Config, logger *log.Logger) (types.NetworkConditions, error) {
	base := cfg.Network.Conditions()
	if c.IsSet("bandwidth") {
		base.BandwidthBPS = c.Int64("bandwidth")
	}
	if c.IsSet("latency") {
		base.Latency = c.Duration("latency")
	}
	if c.IsSet("loss") {
		base.LossFraction = c.Float64("loss")
	}
	if c.IsSet("shared") {
		base.SharedConnection = c.Bool("shared")
	}
	if err := base.Validate(); err != nil {
		return base, err
	}

	probeBucket := firstNonEmpty(c.String("probe-bucket"), cfg.Network.ProbeBucket)
	probeURL := firstNonEmpty(c.String("probe-url"), cfg.Network.ProbeURL)

	var sampler probe.Sampler
	switch {
	case probeBucket != "":
		s3probe, err := probe.NewS3(ctx, probeBucket, firstNonEmpty(c.String("probe-region"), cfg.Network.ProbeRegion), base, logger)
		if err != nil {
			return base, fmt.Errorf("s3 probe setup: %w", err)
		}
		s3probe.Samples = cfg.Network.ProbeSamples
		sampler = s3probe
	case probeURL != "":
		sampler = &probe.HTTP{
			URL:     probeURL,
			Base:    base,
			Samples: cfg.Network.ProbeSamples,
			Logger:  logger,
		}
	default:
		return base, nil
	}

	conditions, err := sampler.Sample(ctx)
	if err != nil {
		return base, fmt.Errorf("latency probe: %w", err)
	}
	return conditions, nil
}

// loadConfig loads --config when given; otherwise returns an empty config
// so built-in defaults apply.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
