package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/cli/render"
	"github.com/justapithecus/drover/cli/tui"
	"github.com/justapithecus/drover/restic"
	"github.com/justapithecus/drover/tuner"
	"github.com/justapithecus/drover/types"
)

// TuneCommand returns the tune command: show the profile the engine
// would use for a provider under given conditions, without running
// anything. Read-only apart from optional latency probing.
func TuneCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), ConfigFlag)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Usage:   "Repository URL; its scheme selects the provider",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Provider name when no repository is given (default: local)",
		},
	)
	flags = append(flags, NetworkFlags()...)

	return &cli.Command{
		Name:   "tune",
		Usage:  "Show the tuned transfer profile for a provider",
		Flags:  flags,
		Action: tuneAction,
	}
}

func tuneAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	provider := types.Provider(c.String("provider"))
	if repo := firstNonEmpty(c.String("repo"), cfg.Repository); repo != "" && provider == "" {
		provider = restic.ParseProvider(repo)
	}
	if provider == "" {
		provider = types.ProviderLocal
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conditions, err := resolveConditions(ctx, c, cfg, nil)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	base := cfg.Profile(provider)
	tuned := tuner.New(nil).Tune(base, conditions)

	view := &tui.TuneView{
		Provider:   provider,
		Conditions: conditions,
		Base:       base,
		Tuned:      tuned,
	}

	if c.Bool("tui") {
		return r.RenderTUI("tune_profile", view)
	}

	return r.Render(view)
}
