// Package runtime orchestrates supervised subprocess execution: spawning the
// backup tool, draining its output streams, enforcing the watchdog timeout,
// and racing completion against caller cancellation.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/sink"
	"github.com/justapithecus/drover/types"
)

// Supervisor runs one external process at a time and converts its lifetime
// into exactly one terminal outcome: a ProcessResult on clean zero exit, or
// one ProcessError variant otherwise. It owns both output pipes and the
// watchdog; it never retries — retry policy lives with the caller.
//
// A Supervisor is constructed with explicit dependencies and is safe to reuse
// across sequential runs; concurrent Run calls need separate instances of the
// attached progress broadcaster and sinks.
type Supervisor struct {
	logger    *log.Logger
	collector *metrics.Collector

	// progress receives the terminal abort/finish signal; may be nil.
	progress *ProgressBroadcaster
	// stdoutSinks and stderrSinks receive lines beyond the internal capture.
	stdoutSinks []sink.LineSink
	stderrSinks []sink.LineSink
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithProgress attaches a progress broadcaster. The supervisor guarantees the
// stream terminates: Finish on natural completion, Abort on timeout or
// cancellation.
func WithProgress(b *ProgressBroadcaster) SupervisorOption {
	return func(s *Supervisor) { s.progress = b }
}

// WithStdoutSink registers an additional stdout line consumer (parser, tail
// buffer, wire encoder). Sinks run in registration order after the capture.
func WithStdoutSink(ls sink.LineSink) SupervisorOption {
	return func(s *Supervisor) { s.stdoutSinks = append(s.stdoutSinks, ls) }
}

// WithStderrSink registers an additional stderr line consumer.
func WithStderrSink(ls sink.LineSink) SupervisorOption {
	return func(s *Supervisor) { s.stderrSinks = append(s.stderrSinks, ls) }
}

// WithLineHandler registers fn on both streams, invoked once per line in
// arrival order within each stream.
func WithLineHandler(fn func(types.OutputLine)) SupervisorOption {
	return func(s *Supervisor) {
		f := sink.NewFunc(fn)
		s.stdoutSinks = append(s.stdoutSinks, f)
		s.stderrSinks = append(s.stderrSinks, f)
	}
}

// NewSupervisor creates a supervisor. logger and collector may be nil.
func NewSupervisor(logger *log.Logger, collector *metrics.Collector, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		logger:    logger,
		collector: collector,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes spec to a terminal outcome.
//
// Flow: spawn with stdout/stderr pipes, then race three concurrent tasks —
// the two stream drains and the watchdog timer — against caller cancellation.
// The first of {drains complete (process exiting), timeout, cancel} wins and
// the losers are cancelled. On timeout or cancellation the child is killed
// and reaped BEFORE the error is returned, so the caller never observes a
// timeout while the process is still alive, and the progress stream always
// receives a terminal snapshot.
func (s *Supervisor) Run(ctx context.Context, spec types.ProcessSpec) (*types.ProcessResult, error) {
	spec = spec.Clone()

	if err := spec.Validate(); err != nil {
		return nil, s.spawnFailed(err)
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = mergedEnv(spec.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, s.spawnFailed(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, s.spawnFailed(fmt.Errorf("stderr pipe: %w", err))
	}

	capture := sink.NewCapture()
	outRouter := NewOutputRouter(types.OriginStdout, s.logger, prepend(capture, s.stdoutSinks)...)
	errRouter := NewOutputRouter(types.OriginStderr, s.logger, prepend(capture, s.stderrSinks)...)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, s.spawnFailed(err)
	}

	s.collector.IncRunStarted()
	s.logger.Info("process started", map[string]any{
		"executable": spec.Executable,
		"args":       spec.Args,
		"env":        spec.RedactedEnv(),
		"timeout":    spec.EffectiveTimeout().String(),
		"pid":        cmd.Process.Pid,
	})

	// Drain both pipes concurrently. Draining must complete before the
	// process is reaped: exec.Cmd.Wait closes the pipes, and reaping first
	// would race reads against teardown and lose buffered output.
	drainCtx, stopDrains := context.WithCancel(context.Background())
	defer stopDrains()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = outRouter.Drain(drainCtx, stdout)
	}()
	go func() {
		defer wg.Done()
		_ = errRouter.Drain(drainCtx, stderr)
	}()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	timeout := spec.EffectiveTimeout()
	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	// First to resolve wins. When the child exits its pipes hit EOF, so
	// "drained" doubles as the process-exit signal on the happy path.
	var abort *types.ProcessError
	select {
	case <-drained:
	case <-watchdog.C:
		abort = types.NewTimeoutError(timeout)
	case <-ctx.Done():
		abort = types.NewCancelledError(ctx.Err())
	}

	if abort != nil {
		return nil, s.terminate(cmd, abort, drained, stopDrains, outRouter, errRouter, start)
	}

	// Natural completion: pipes are fully drained, reap the child.
	waitErr := cmd.Wait()
	duration := time.Since(start)
	s.absorbRouters(outRouter, errRouter)

	exitCode, waitFailure := exitCodeFromWait(waitErr)
	if waitFailure != nil {
		s.progressAbort()
		s.collector.IncRunFailed()
		return nil, &types.ProcessError{Kind: types.ProcessErrorExec, ExitCode: -1, Err: waitFailure}
	}

	stdoutText := capture.Text(types.OriginStdout)
	stderrText := capture.Text(types.OriginStderr)

	if exitCode != 0 {
		s.progressAbort()
		s.collector.IncRunFailed()
		s.logger.Warn("process failed", map[string]any{
			"exit_code": exitCode,
			"duration":  duration.String(),
		})
		message := strings.TrimSpace(stderrText)
		if message == "" {
			message = strings.TrimSpace(stdoutText)
		}
		return nil, types.NewExecError(exitCode, message)
	}

	s.progressFinish()
	s.collector.IncRunCompleted()
	s.logger.Info("process completed", map[string]any{
		"duration": duration.String(),
	})

	return &types.ProcessResult{
		ExitCode: 0,
		Stdout:   stdoutText,
		Stderr:   stderrText,
		Duration: duration,
	}, nil
}

// terminate performs the exactly-once teardown for timeout and cancellation:
// kill the child, let the drains observe pipe closure, reap, push the
// terminal aborted snapshot, and only then surface the error. From the
// caller's perspective these effects are atomic — by the time the error is
// returned there is no live child and no open progress stream.
func (s *Supervisor) terminate(
	cmd *exec.Cmd,
	cause *types.ProcessError,
	drained <-chan struct{},
	stopDrains context.CancelFunc,
	outRouter, errRouter *OutputRouter,
	start time.Time,
) error {
	if err := cmd.Process.Kill(); err != nil {
		s.logger.Warn("kill failed", map[string]any{"error": err.Error()})
	}
	stopDrains()
	<-drained
	_ = cmd.Wait()

	s.absorbRouters(outRouter, errRouter)
	s.progressAbort()

	switch cause.Kind {
	case types.ProcessErrorTimeout:
		s.collector.IncRunTimedOut()
	case types.ProcessErrorCancelled:
		s.collector.IncRunCancelled()
	}

	s.logger.Warn("process terminated", map[string]any{
		"reason":   cause.Kind.String(),
		"duration": time.Since(start).String(),
	})
	return cause
}

func (s *Supervisor) spawnFailed(err error) error {
	s.collector.IncSpawnFailure()
	s.progressAbort()
	s.logger.Error("spawn failed", map[string]any{"error": err.Error()})
	return types.NewSpawnError(err)
}

func (s *Supervisor) progressAbort() {
	if s.progress != nil {
		s.progress.Abort()
	}
}

func (s *Supervisor) progressFinish() {
	if s.progress != nil {
		s.progress.Finish()
	}
}

func (s *Supervisor) absorbRouters(routers ...*OutputRouter) {
	for _, r := range routers {
		st := r.Stats()
		s.collector.AbsorbRouterStats(st.LinesRouted, 0, st.SinkPanics)
	}
}

// exitCodeFromWait maps a Wait error to the child's exit status. A non-exit
// error (wait itself failed) is returned separately.
func exitCodeFromWait(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}
		return -1, nil
	}
	return -1, fmt.Errorf("wait failed: %w", err)
}

// mergedEnv layers overrides on top of the inherited environment. Override
// values win over inherited duplicates.
func mergedEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil // exec.Cmd inherits os.Environ() when Env is nil
	}
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return deduplicateEnv(env)
}

// deduplicateEnv keeps the last occurrence of each env var key, so appended
// overrides win over inherited duplicates from os.Environ().
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

func prepend(first sink.LineSink, rest []sink.LineSink) []sink.LineSink {
	out := make([]sink.LineSink, 0, len(rest)+1)
	out = append(out, first)
	out = append(out, rest...)
	return out
}
