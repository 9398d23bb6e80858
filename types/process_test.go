package types //nolint:revive // types is a valid package name

import (
	"testing"
	"time"
)

func TestProcessSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ProcessSpec
		wantErr bool
	}{
		{
			name: "valid minimal",
			spec: ProcessSpec{Executable: "/usr/bin/restic"},
		},
		{
			name: "valid with timeout",
			spec: ProcessSpec{Executable: "restic", Timeout: time.Minute},
		},
		{
			name:    "missing executable",
			spec:    ProcessSpec{Args: []string{"backup"}},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			spec:    ProcessSpec{Executable: "restic", Timeout: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessSpec_EffectiveTimeout(t *testing.T) {
	spec := ProcessSpec{Executable: "restic"}
	if got := spec.EffectiveTimeout(); got != DefaultTimeout {
		t.Errorf("zero timeout: got %s, want default %s", got, DefaultTimeout)
	}

	spec.Timeout = 42 * time.Second
	if got := spec.EffectiveTimeout(); got != 42*time.Second {
		t.Errorf("explicit timeout: got %s, want 42s", got)
	}
}

func TestProcessSpec_Clone_Independent(t *testing.T) {
	original := ProcessSpec{
		Executable: "restic",
		Args:       []string{"backup", "/data"},
		Env:        map[string]string{"RESTIC_REPOSITORY": "s3:bucket/prefix"},
		WorkingDir: "/srv",
		Timeout:    time.Minute,
	}

	clone := original.Clone()

	// Mutating the clone must not reach back into the original.
	clone.Args[0] = "restore"
	clone.Env["RESTIC_REPOSITORY"] = "local:/tmp"

	if original.Args[0] != "backup" {
		t.Errorf("clone mutation leaked into original args: %v", original.Args)
	}
	if original.Env["RESTIC_REPOSITORY"] != "s3:bucket/prefix" {
		t.Errorf("clone mutation leaked into original env: %v", original.Env)
	}
	if clone.Executable != original.Executable || clone.WorkingDir != original.WorkingDir {
		t.Error("clone dropped scalar fields")
	}
	if clone.Timeout != original.Timeout {
		t.Errorf("clone timeout = %s, want %s", clone.Timeout, original.Timeout)
	}
}

func TestProcessSpec_Clone_EmptyCollections(t *testing.T) {
	spec := ProcessSpec{Executable: "restic"}
	clone := spec.Clone()
	if clone.Args != nil || clone.Env != nil {
		t.Error("clone should preserve nil collections")
	}
}

func TestProcessSpec_RedactedEnv(t *testing.T) {
	spec := ProcessSpec{
		Executable: "restic",
		Env: map[string]string{
			"RESTIC_PASSWORD":       "hunter2",
			"AWS_SECRET_ACCESS_KEY": "deadbeef",
			"AWS_ACCESS_KEY_ID":     "AKIA123",
			"API_TOKEN":             "tok",
			"RESTIC_REPOSITORY":     "s3:bucket/prefix",
			"HOME":                  "/root",
		},
	}

	redacted := spec.RedactedEnv()

	for _, key := range []string{"RESTIC_PASSWORD", "AWS_SECRET_ACCESS_KEY", "AWS_ACCESS_KEY_ID", "API_TOKEN"} {
		if redacted[key] != RedactedValue {
			t.Errorf("%s = %q, want %q", key, redacted[key], RedactedValue)
		}
	}
	if redacted["RESTIC_REPOSITORY"] != "s3:bucket/prefix" {
		t.Errorf("repository should survive redaction, got %q", redacted["RESTIC_REPOSITORY"])
	}
	if redacted["HOME"] != "/root" {
		t.Errorf("HOME should survive redaction, got %q", redacted["HOME"])
	}

	// Original must be untouched.
	if spec.Env["RESTIC_PASSWORD"] != "hunter2" {
		t.Error("redaction mutated the spec env")
	}
}

func TestProcessSpec_RedactedEnv_Empty(t *testing.T) {
	spec := ProcessSpec{Executable: "restic"}
	if got := spec.RedactedEnv(); got != nil {
		t.Errorf("empty env should redact to nil, got %v", got)
	}
}

func TestProcessResult_Success(t *testing.T) {
	ok := ProcessResult{ExitCode: 0, Stdout: "done\n"}
	if !ok.Success() {
		t.Error("exit 0 should be success")
	}

	bad := ProcessResult{ExitCode: 1}
	if bad.Success() {
		t.Error("exit 1 should not be success")
	}
}
