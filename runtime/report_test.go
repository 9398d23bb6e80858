package runtime

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

func TestOutcomeLabel(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "success"},
		{"timeout", types.NewTimeoutError(time.Second), "timed_out"},
		{"cancelled", types.NewCancelledError(nil), "cancelled"},
		{"exec", types.NewExecError(1, "boom"), "execution_failed"},
		{"spawn", types.NewSpawnError(os.ErrNotExist), "spawn_failed"},
		{"plain", os.ErrPermission, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutcomeLabel(tc.err); got != tc.want {
				t.Errorf("OutcomeLabel(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestBuildRunReport_Success(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderS3)
	result := &types.ProcessResult{ExitCode: 0, Stdout: "ok\n", Duration: 2 * time.Second}
	summary := &SummaryMessage{SnapshotID: "deadbeef", TotalFilesProcessed: 10}

	report := BuildRunReport("run-1", "backup", profile, result, nil, 1, 2*time.Second, nil, summary, metrics.Snapshot{RunsCompleted: 1})

	if report.Outcome != "success" || report.ExitCode != 0 {
		t.Errorf("outcome = %q exit = %d", report.Outcome, report.ExitCode)
	}
	if report.Provider != "s3" {
		t.Errorf("provider = %q, want s3", report.Provider)
	}
	if report.Attempts != 1 || report.DurationMs != 2000 {
		t.Errorf("attempts = %d duration = %dms", report.Attempts, report.DurationMs)
	}
	if report.Summary == nil || report.Summary.SnapshotID != "deadbeef" {
		t.Error("summary not carried")
	}
	if report.Metrics == nil || report.Metrics.RunsCompleted != 1 {
		t.Error("metrics snapshot not carried")
	}
}

func TestBuildRunReport_ExecFailureCarriesDiagnostics(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderLocal)
	runErr := types.NewExecError(3, "Fatal: unable to open repository")

	report := BuildRunReport("run-2", "backup", profile, nil, runErr, 2, time.Second, nil, nil, metrics.Snapshot{})

	if report.Outcome != "execution_failed" {
		t.Errorf("outcome = %q", report.Outcome)
	}
	if report.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", report.ExitCode)
	}
	if report.Stderr != "Fatal: unable to open repository" {
		t.Errorf("stderr = %q, want captured diagnostics", report.Stderr)
	}
	if report.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", report.Attempts)
	}
}

func TestBuildRunReport_TimeoutHasNoStderr(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderB2)
	runErr := types.NewTimeoutError(30 * time.Second)

	report := BuildRunReport("run-3", "backup", profile, nil, runErr, 1, 30*time.Second, nil, nil, metrics.Snapshot{})

	if report.Outcome != "timed_out" {
		t.Errorf("outcome = %q", report.Outcome)
	}
	if report.Stderr != "" {
		t.Errorf("stderr = %q, want empty for timeout", report.Stderr)
	}
	if report.Message == "" {
		t.Error("timeout report should carry the error message")
	}
}

func TestWriteRunReport_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := BuildRunReport("run-4", "check", types.DefaultProfile(types.ProviderLocal), &types.ProcessResult{}, nil, 1, time.Second, nil, nil, metrics.Snapshot{})

	if err := WriteRunReport(report, path); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.RunID != "run-4" || decoded.Command != "check" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteRunReport_EmptyPathRejected(t *testing.T) {
	if err := WriteRunReport(&RunReport{}, ""); err == nil {
		t.Error("empty path should be rejected")
	}
}
