package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID      string `json:"run_id"`
	Command    string `json:"command"`
	Provider   string `json:"provider,omitempty"`
	Outcome    string `json:"outcome"`
	ExitCode   int    `json:"exit_code"`
	Message    string `json:"message,omitempty"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"duration_ms"`

	Profile  *types.ProviderProfile `json:"profile,omitempty"`
	Transfer *types.TransferState   `json:"transfer,omitempty"`
	Summary  *SummaryMessage        `json:"summary,omitempty"`
	Metrics  *metrics.Snapshot      `json:"metrics"`

	Stderr string `json:"stderr,omitempty"`
}

// OutcomeLabel maps a run's terminal error to the report outcome string.
// A nil error is "success".
func OutcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if pe, ok := types.AsProcessError(err); ok {
		return pe.Kind.String()
	}
	return "error"
}

// BuildRunReport composes a RunReport from a finished run.
// result is nil when the run failed; runErr is nil when it succeeded.
func BuildRunReport(
	runID string,
	command string,
	profile types.ProviderProfile,
	result *types.ProcessResult,
	runErr error,
	attempts int,
	duration time.Duration,
	transfer *types.TransferState,
	summary *SummaryMessage,
	snap metrics.Snapshot,
) *RunReport {
	report := &RunReport{
		RunID:      runID,
		Command:    command,
		Provider:   string(profile.Provider),
		Outcome:    OutcomeLabel(runErr),
		Attempts:   attempts,
		DurationMs: duration.Milliseconds(),
		Profile:    &profile,
		Transfer:   transfer,
		Summary:    summary,
		Metrics:    &snap,
	}

	switch {
	case result != nil:
		report.ExitCode = result.ExitCode
		report.Stderr = result.Stderr
	case runErr != nil:
		if pe, ok := types.AsProcessError(runErr); ok {
			report.ExitCode = pe.ExitCode
			report.Message = pe.Error()
			// ExecutionFailed surfaces captured diagnostics verbatim;
			// timeouts and cancellations have none to surface.
			if pe.Kind == types.ProcessErrorExec {
				report.Stderr = pe.Message
			}
		} else {
			report.ExitCode = -1
			report.Message = runErr.Error()
		}
	}

	return report
}

// WriteRunReport writes the report as indented JSON to path.
// Path "-" writes to stderr, keeping stdout free for command output.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		return writeRunReportTo(report, os.Stderr)
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
