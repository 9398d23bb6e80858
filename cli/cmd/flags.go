// Package cmd provides CLI commands for the drover binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select commands (history, tune, run).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (history, tune, run only)",
	}

	// ConfigFlag points at a drover.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to drover.yaml config file",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ArchiveFlags returns the flags selecting the transfer-history store.
// Shared between run (writes) and history (reads).
func ArchiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Transfer history backend: fs or s3 (empty disables archiving)",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Transfer history location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "archive-dataset",
			Usage: "Transfer history dataset name",
		},
		&cli.StringFlag{
			Name:  "archive-region",
			Usage: "AWS region for the s3 archive backend",
		},
		&cli.StringFlag{
			Name:  "archive-endpoint",
			Usage: "Custom S3 endpoint for the s3 archive backend",
		},
		&cli.BoolFlag{
			Name:  "archive-path-style",
			Usage: "Use path-style addressing for the s3 archive backend",
		},
	}
}

// NetworkFlags returns the flags declaring link conditions and probes.
// Shared between run and tune.
func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:  "bandwidth",
			Usage: "Available upstream bandwidth in bytes/second (0 = unknown)",
		},
		&cli.DurationFlag{
			Name:  "latency",
			Usage: "Round-trip latency to the backend (0 = unknown)",
		},
		&cli.Float64Flag{
			Name:  "loss",
			Usage: "Observed packet loss fraction in [0, 1]",
		},
		&cli.BoolFlag{
			Name:  "shared",
			Usage: "Link carries other traffic; leave rate headroom",
		},
		&cli.StringFlag{
			Name:  "probe-url",
			Usage: "Probe latency with HTTP HEAD requests against this URL",
		},
		&cli.StringFlag{
			Name:  "probe-bucket",
			Usage: "Probe latency with S3 HeadBucket against this bucket",
		},
		&cli.StringFlag{
			Name:  "probe-region",
			Usage: "AWS region for the S3 latency probe",
		},
	}
}
