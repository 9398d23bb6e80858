package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/drover/adapter"
	redisadapter "github.com/justapithecus/drover/adapter/redis"
	"github.com/justapithecus/drover/adapter/webhook"
	"github.com/justapithecus/drover/cli/config"
	"github.com/justapithecus/drover/cli/tui"
	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/registry"
	"github.com/justapithecus/drover/restic"
	"github.com/justapithecus/drover/retry"
	"github.com/justapithecus/drover/runtime"
	"github.com/justapithecus/drover/sink"
	"github.com/justapithecus/drover/tuner"
	"github.com/justapithecus/drover/types"
	"github.com/justapithecus/drover/wire"
)

// Exit codes for drover run. Shell conventions: 124 for timeouts,
// 127 for a command that could not be started, 130 for interrupts.
const (
	exitSuccess     = 0
	exitExecFailed  = 1
	exitTimedOut    = 124
	exitSpawnFailed = 127
	exitCancelled   = 130
)

// RunCommand returns the run command.
// This is the only command that executes work.
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Usage:   "Repository URL (e.g. s3:s3.amazonaws.com/bucket, /srv/repo)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (minted if omitted)",
		},
		&cli.StringFlag{
			Name:  "binary",
			Usage: "Path to the backup tool executable",
		},
		&cli.StringFlag{
			Name:  "workdir",
			Usage: "Working directory for the child process",
		},
		&cli.StringFlag{
			Name:  "password-file",
			Usage: "File holding the repository password (default: RESTIC_PASSWORD env)",
		},
		&cli.StringSliceFlag{
			Name:  "extra-arg",
			Usage: "Extra argument passed to the backup tool verbatim (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "no-tune",
			Usage: "Skip network-aware profile tuning",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (\"-\" = stderr)",
		},
		&cli.StringFlag{
			Name:  "wire",
			Usage: "Stream progress/line/result frames to this path (for embedding shells)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the run report on stdout",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Echo the tool's stderr to the terminal",
		},
		TUIFlag,
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion event adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Adapter endpoint (webhook URL or redis:// URL)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel for the redis adapter",
		},
	}
	flags = append(flags, NetworkFlags()...)
	flags = append(flags, ArchiveFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Supervise a backup tool command (the only execution entrypoint)",
		ArgsUsage: "<command> [targets...]",
		Flags:     flags,
		Action:    runAction,
	}
}

// runParams is everything runAction resolves before execution starts.
type runParams struct {
	runID   string
	request restic.Request
	profile types.ProviderProfile
	tuned   types.ProviderProfile

	track   bool
	verbose bool

	logger    *log.Logger
	collector *metrics.Collector
	reg       *registry.Registry
	coord     *retry.Coordinator
	tun       *tuner.Tuner
	enc       *wire.Encoder

	// display retains recent tool output for the live view; nil outside
	// TUI runs.
	display *sink.Tail
}

// runOutcome is the terminal state of the retry loop.
type runOutcome struct {
	result   *types.ProcessResult
	err      error
	attempts int
	summary  *runtime.SummaryMessage
	duration time.Duration
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSpawnFailed)
	}

	if c.Args().Len() == 0 {
		return cli.Exit(fmt.Sprintf("a command is required: %s", commandList()), exitSpawnFailed)
	}
	command := restic.Command(c.Args().First())

	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}

	repository := firstNonEmpty(c.String("repo"), cfg.Repository)
	password, err := resolvePassword(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSpawnFailed)
	}

	request := restic.Request{
		Command:    command,
		Repository: repository,
		Password:   password,
		Targets:    c.Args().Tail(),
		ExtraArgs:  c.StringSlice("extra-arg"),
		BinaryPath: firstNonEmpty(c.String("binary"), cfg.Binary),
		WorkingDir: firstNonEmpty(c.String("workdir"), cfg.WorkingDir),
	}
	if err := request.Validate(); err != nil {
		return cli.Exit(err.Error(), exitSpawnFailed)
	}

	provider := restic.ParseProvider(repository)
	logger := log.NewLogger(log.RunContext{
		RunID:    runID,
		Command:  string(command),
		Provider: string(provider),
	})
	collector := metrics.NewCollector(runID, string(command), string(provider))

	// Signal handling: first SIGINT/SIGTERM cancels the run.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	// Resolve conditions and tune the profile before the first attempt.
	profile := cfg.Profile(provider)
	tuned := profile
	tun := tuner.New(logger)
	if !c.Bool("no-tune") {
		conditions, err := resolveConditions(ctx, c, cfg, logger)
		if err != nil {
			return cli.Exit(err.Error(), exitSpawnFailed)
		}
		tuned = tun.Tune(profile, conditions)
	}

	params := &runParams{
		runID:     runID,
		request:   request,
		profile:   profile,
		tuned:     tuned,
		track:     restic.Transfers(command),
		verbose:   c.Bool("verbose"),
		logger:    logger,
		collector: collector,
		reg:       registry.New(logger, collector),
		coord:     retry.NewCoordinator(logger, collector),
		tun:       tun,
	}

	var wireFile *os.File
	if path := c.String("wire"); path != "" {
		wireFile, err = os.Create(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open wire output: %v", err), exitSpawnFailed)
		}
		defer wireFile.Close()
		params.enc = wire.NewEncoder(wireFile)
	}

	var outcome runOutcome
	if c.Bool("tui") {
		outcome = executeWithTUI(ctx, params)
	} else {
		outcome = execute(ctx, params, nil)
	}

	// Terminal registry transition, then archive the evicted state.
	var transfer *types.TransferState
	if params.track {
		if outcome.err == nil {
			params.reg.Complete(runID)
		} else {
			params.reg.Fail(runID, outcome.err)
		}
		if state, ok := params.reg.Get(runID); ok {
			transfer = &state
		}
		archiveTerminal(c, cfg, params)
	}

	if params.enc != nil {
		writeResultFrame(params, outcome)
	}

	report := runtime.BuildRunReport(
		runID, string(command), params.tuned,
		outcome.result, outcome.err, outcome.attempts, outcome.duration,
		transfer, outcome.summary, collector.Snapshot(),
	)

	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(report, path); err != nil {
			logger.Error("run report write failed", map[string]any{"error": err.Error()})
		}
	}
	if !c.Bool("quiet") {
		printReport(report)
	}

	publishCompletion(c, cfg, params, transfer, outcome)

	return cli.Exit("", exitCodeFor(outcome.err))
}

// executeWithTUI runs the retry loop on a background goroutine while the
// live progress view owns the terminal. Detaching from the view does not
// cancel the run. Tool output reaches the view through a drop-oldest tail
// so a stalled repaint never backpressures the child.
func executeWithTUI(ctx context.Context, params *runParams) runOutcome {
	tuiCh := make(chan types.ProgressSnapshot, 16)
	outCh := make(chan runOutcome, 1)

	params.display = sink.NewTail(tui.ScrollbackLines)

	go func() {
		outCh <- execute(ctx, params, func(snap types.ProgressSnapshot) {
			select {
			case tuiCh <- snap:
			default:
				// Slow terminal; drop rather than stall the run.
			}
		})
		close(tuiCh)
	}()

	if err := tui.RunProgressTUI(params.runID, string(params.request.Command), tuiCh, params.display); err != nil {
		params.logger.Warn("progress view failed", map[string]any{"error": err.Error()})
	}
	return <-outCh
}

// execute drives attempts until success, a non-retriable failure, or an
// exhausted retry budget. The retry schedule follows the tuned profile;
// timed-out attempts degrade the working profile before the next try.
func execute(ctx context.Context, params *runParams, forward func(types.ProgressSnapshot)) runOutcome {
	if params.track {
		params.reg.Start(params.runID, params.profile.Provider, 0)
	}

	start := time.Now()
	active := params.tuned
	attempt := 1

	for {
		result, summary, err := runAttempt(ctx, params, active, forward)
		outcome := runOutcome{
			result:   result,
			err:      err,
			attempts: attempt,
			summary:  summary,
			duration: time.Since(start),
		}
		if err == nil {
			return outcome
		}
		// Cancellation and spawn failures are never retried: the former is
		// the user's call, the latter will not heal between attempts.
		if types.IsCancelled(err) || types.IsSpawnFailure(err) {
			return outcome
		}

		delay, ok := params.coord.Next(attempt, params.tuned)
		if !ok {
			return outcome
		}
		if params.track {
			params.reg.IncRetry(params.runID)
		}
		if types.IsTimeout(err) {
			active = params.tun.DegradeForRetry(active)
		}
		if waitErr := retry.Wait(ctx, delay); waitErr != nil {
			return outcome
		}
		attempt++
	}
}

// runAttempt performs one supervised invocation with a fresh progress
// stream. The snapshot consumer drains the subscription fully before the
// attempt is considered over.
func runAttempt(
	ctx context.Context,
	params *runParams,
	active types.ProviderProfile,
	forward func(types.ProgressSnapshot),
) (*types.ProcessResult, *runtime.SummaryMessage, error) {
	spec, err := restic.BuildSpec(params.request, active)
	if err != nil {
		return nil, nil, types.NewSpawnError(err)
	}

	broadcaster := runtime.NewProgressBroadcaster(params.collector)
	parser := runtime.NewStatusParser(broadcaster)

	sub := broadcaster.Subscribe()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for snap := range sub {
			if params.track {
				if snap.TotalBytes > 0 {
					params.reg.SetTotal(params.runID, snap.TotalBytes)
				}
				params.reg.Update(params.runID, snap.BytesDone)
			}
			if params.enc != nil {
				if err := params.enc.WriteProgress(params.runID, snap); err != nil {
					params.logger.Warn("wire progress write failed", map[string]any{"error": err.Error()})
				}
			}
			if forward != nil {
				forward(snap)
			}
		}
	}()

	opts := []runtime.SupervisorOption{
		runtime.WithProgress(broadcaster),
		runtime.WithStdoutSink(parser),
	}
	if params.enc != nil {
		opts = append(opts, runtime.WithLineHandler(func(line types.OutputLine) {
			if err := params.enc.WriteLine(params.runID, line); err != nil {
				params.logger.Warn("wire line write failed", map[string]any{"error": err.Error()})
			}
		}))
	}
	if params.display != nil {
		opts = append(opts, runtime.WithStdoutSink(params.display), runtime.WithStderrSink(params.display))
	}
	if params.verbose {
		opts = append(opts, runtime.WithStderrSink(sink.NewPrefixWriter(os.Stderr, "tool: ")))
	}

	supervisor := runtime.NewSupervisor(params.logger, params.collector, opts...)
	result, runErr := supervisor.Run(ctx, spec)
	<-drained

	summary, _ := parser.Summary()
	return result, summary, runErr
}

// archiveTerminal evicts the finished transfer and writes it to the
// history store when one is configured. Uses a fresh context so archival
// still happens after cancellation.
func archiveTerminal(c *cli.Context, cfg *config.Config, params *runParams) {
	evicted := params.reg.EvictTerminal(0)
	if len(evicted) == 0 {
		return
	}

	choice := archiveChoiceFrom(c, cfg)
	if !choice.enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := buildArchiveStore(ctx, choice, params.logger, params.collector)
	if err != nil {
		params.logger.Error("archive store setup failed", map[string]any{"error": err.Error()})
		return
	}
	if err := store.Archive(ctx, evicted); err != nil {
		params.logger.Error("transfer archival failed", map[string]any{"error": err.Error()})
	}
}

// publishCompletion sends the terminal event through the configured
// adapter, if any. Publish failures are logged, never fatal: the run's
// outcome stands regardless of downstream delivery.
func publishCompletion(c *cli.Context, cfg *config.Config, params *runParams, transfer *types.TransferState, outcome runOutcome) {
	a, err := buildAdapter(c, cfg)
	if err != nil {
		params.logger.Error("adapter setup failed", map[string]any{"error": err.Error()})
		return
	}
	if a == nil {
		return
	}
	defer a.Close()

	event := &adapter.TransferCompletedEvent{
		EventType:  adapter.EventType,
		RunID:      params.runID,
		Command:    string(params.request.Command),
		Provider:   string(params.profile.Provider),
		Outcome:    runtime.OutcomeLabel(outcome.err),
		Attempts:   outcome.attempts,
		DurationMs: outcome.duration.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if outcome.result != nil {
		event.ExitCode = outcome.result.ExitCode
	} else if pe, ok := types.AsProcessError(outcome.err); ok {
		event.ExitCode = pe.ExitCode
	}
	if transfer != nil {
		event.TransferID = transfer.ID
		event.BytesDone = transfer.BytesDone
		event.TotalBytes = transfer.TotalBytes
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Publish(ctx, event); err != nil {
		params.logger.Error("completion event publish failed", map[string]any{"error": err.Error()})
	}
}

// buildAdapter resolves the adapter choice from flags and config.
// Returns (nil, nil) when no adapter is configured.
func buildAdapter(c *cli.Context, cfg *config.Config) (adapter.Adapter, error) {
	kind := firstNonEmpty(c.String("adapter"), cfg.Adapter.Type)
	if kind == "" {
		return nil, nil
	}
	url := firstNonEmpty(c.String("adapter-url"), cfg.Adapter.URL)

	retries := webhook.DefaultRetries
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch kind {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     url,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redisadapter.New(redisadapter.Config{
			URL:     url,
			Channel: firstNonEmpty(c.String("adapter-channel"), cfg.Adapter.Channel),
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", kind)
	}
}

func writeResultFrame(params *runParams, outcome runOutcome) {
	exitCode := 0
	message := ""
	if outcome.result != nil {
		exitCode = outcome.result.ExitCode
	} else if pe, ok := types.AsProcessError(outcome.err); ok {
		exitCode = pe.ExitCode
		message = pe.Error()
	} else if outcome.err != nil {
		exitCode = -1
		message = outcome.err.Error()
	}

	err := params.enc.WriteResult(params.runID, runtime.OutcomeLabel(outcome.err), exitCode, message, outcome.duration)
	if err != nil {
		params.logger.Warn("wire result write failed", map[string]any{"error": err.Error()})
	}
}

// resolvePassword reads the repository password from --password-file or
// the RESTIC_PASSWORD environment variable. The password only ever
// travels via the child's environment.
func resolvePassword(c *cli.Context) (string, error) {
	if path := c.String("password-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("cannot read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return os.Getenv("RESTIC_PASSWORD"), nil
}

func printReport(report *runtime.RunReport) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "cannot print run report: %v\n", err)
	}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	if pe, ok := types.AsProcessError(err); ok {
		switch pe.Kind {
		case types.ProcessErrorSpawn:
			return exitSpawnFailed
		case types.ProcessErrorTimeout:
			return exitTimedOut
		case types.ProcessErrorCancelled:
			return exitCancelled
		case types.ProcessErrorExec:
			if pe.ExitCode > 0 {
				return pe.ExitCode
			}
			return exitExecFailed
		}
	}
	return exitExecFailed
}

func commandList() string {
	names := make([]string, 0, len(restic.Commands()))
	for _, cmd := range restic.Commands() {
		names = append(names, string(cmd))
	}
	return strings.Join(names, ", ")
}
