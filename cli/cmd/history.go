package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/archive"
	"github.com/justapithecus/drover/cli/render"
	"github.com/justapithecus/drover/types"
)

// historyWarningThreshold is the number of records above which we warn
// about using --limit.
const historyWarningThreshold = 100

// HistoryCommand returns the history command: archived transfers, read-only.
func HistoryCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), ConfigFlag)
	flags = append(flags, ArchiveFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Filter by storage provider (s3, b2, azure, gcs, sftp, rest, local)",
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by terminal status: completed or failed",
		},
		&cli.DurationFlag{
			Name:  "since",
			Usage: "Only transfers updated within this window (e.g. 72h)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of transfers to return (0 = no limit)",
		},
	)

	return &cli.Command{
		Name:   "history",
		Usage:  "List archived transfers",
		Flags:  flags,
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	choice := archiveChoiceFrom(c, cfg)
	if !choice.enabled() {
		return cli.Exit("no archive backend configured; set --archive-backend or the archive section of drover.yaml", 1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := buildArchiveStore(ctx, choice, nil, nil)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	filter := archive.Filter{
		Provider: types.Provider(c.String("provider")),
		Status:   types.TransferStatus(c.String("status")),
		Limit:    c.Int("limit"),
	}
	if window := c.Duration("since"); window > 0 {
		filter.Since = time.Now().Add(-window)
	}

	transfers, err := store.Query(ctx, filter)
	if err != nil {
		if errors.Is(err, archive.ErrNoTransfersFound) {
			transfers = nil
		} else {
			return cli.Exit(fmt.Sprintf("history query failed: %v", err), 1)
		}
	}

	if c.Bool("tui") {
		return r.RenderTUI("history_transfers", transfers)
	}

	// Warn if output is large and --limit was not specified (TTY only to
	// avoid noise in pipelines)
	if len(transfers) > historyWarningThreshold && filter.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(transfers))
	}

	return r.Render(transfers)
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
