package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/cli/render"
	"github.com/justapithecus/drover/runtime"
	"github.com/justapithecus/drover/types"
)

// TransfersCommand returns the transfers command. The registry lives
// inside a run process, so this reads the registry snapshots that
// `drover run --report` persisted.
func TransfersCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfers",
		Usage:     "Show transfer state from run reports",
		ArgsUsage: "<report.json> [report.json...]",
		Flags:     ReadOnlyFlags(),
		Action:    transfersAction,
	}
}

func transfersAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for transfers; use drover history --tui", 1)
	}

	if c.Args().Len() == 0 {
		return cli.Exit("at least one run report path is required", 1)
	}

	var transfers []types.TransferState
	for _, path := range c.Args().Slice() {
		report, err := readRunReport(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if report.Transfer != nil {
			transfers = append(transfers, *report.Transfer)
		}
	}

	return r.Render(transfers)
}

func readRunReport(path string) (*runtime.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read run report %q: %w", path, err)
	}
	var report runtime.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid run report %q: %w", path, err)
	}
	return &report, nil
}
