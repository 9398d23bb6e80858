package restic

import (
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/drover/types"
)

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func TestParseProvider(t *testing.T) {
	cases := []struct {
		repo string
		want types.Provider
	}{
		{"s3:s3.amazonaws.com/bucket/path", types.ProviderS3},
		{"b2:bucketname:path", types.ProviderB2},
		{"azure:container:/path", types.ProviderAzure},
		{"gs:bucket:/", types.ProviderGCS},
		{"sftp:user@host:/srv/restic", types.ProviderSFTP},
		{"rest:https://host:8000/", types.ProviderREST},
		{"/var/backups/repo", types.ProviderLocal},
		{"relative/path", types.ProviderLocal},
		{"weird:scheme", types.ProviderLocal},
	}
	for _, tc := range cases {
		if got := ParseProvider(tc.repo); got != tc.want {
			t.Errorf("ParseProvider(%q) = %q, want %q", tc.repo, got, tc.want)
		}
	}
}

func TestBuildSpec_Backup(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderS3)
	spec, err := BuildSpec(Request{
		Command:    CommandBackup,
		Repository: "s3:s3.amazonaws.com/bucket",
		Password:   "hunter2",
		Targets:    []string{"/home", "/etc"},
	}, profile)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if spec.Executable != "restic" {
		t.Errorf("executable = %q", spec.Executable)
	}
	if spec.Args[0] != "backup" {
		t.Errorf("subcommand = %q", spec.Args[0])
	}
	if !hasArg(spec.Args, "--json") {
		t.Error("spec must request machine-readable output")
	}
	if got := argValue(t, spec.Args, "--pack-size"); got != "16" {
		t.Errorf("pack size = %s MiB, want 16", got)
	}
	if got := argValue(t, spec.Args, "--compression"); got != "auto" {
		t.Errorf("compression = %s", got)
	}
	if got := argValue(t, spec.Args, "-o"); got != "s3.connections=5" {
		t.Errorf("connections option = %s", got)
	}

	// Targets are trailing positionals.
	n := len(spec.Args)
	if spec.Args[n-2] != "/home" || spec.Args[n-1] != "/etc" {
		t.Errorf("targets misplaced: %v", spec.Args)
	}

	if spec.Env["RESTIC_REPOSITORY"] != "s3:s3.amazonaws.com/bucket" {
		t.Error("repository must travel via env")
	}
	if spec.Env["RESTIC_PASSWORD"] != "hunter2" {
		t.Error("password must travel via env")
	}
	for _, a := range spec.Args {
		if strings.Contains(a, "hunter2") {
			t.Fatal("password leaked into argv")
		}
	}
	if spec.Timeout != profile.Timeout {
		t.Errorf("timeout = %s, want profile's %s", spec.Timeout, profile.Timeout)
	}
}

func TestBuildSpec_RateLimitInKiB(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderS3)
	profile.RateLimit = 250_000

	spec, err := BuildSpec(Request{
		Command:    CommandBackup,
		Repository: "s3:host/bucket",
		Targets:    []string{"/data"},
	}, profile)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := argValue(t, spec.Args, "--limit-upload"); got != "244" {
		t.Errorf("limit-upload = %s KiB/s, want 244", got)
	}
}

func TestBuildSpec_ReadOnlyCommandsSkipTransferFlags(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderS3)
	profile.RateLimit = 500_000

	for _, cmd := range []Command{CommandCheck, CommandSnapshots, CommandStats} {
		spec, err := BuildSpec(Request{
			Command:    cmd,
			Repository: "s3:host/bucket",
		}, profile)
		if err != nil {
			t.Fatalf("build %s: %v", cmd, err)
		}
		if hasArg(spec.Args, "--pack-size") || hasArg(spec.Args, "--limit-upload") {
			t.Errorf("%s should not carry upload tuning flags: %v", cmd, spec.Args)
		}
	}
}

func TestBuildSpec_SFTPHasNoConnectionsOption(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderSFTP)
	spec, err := BuildSpec(Request{
		Command:    CommandCheck,
		Repository: "sftp:user@host:/repo",
	}, profile)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if hasArg(spec.Args, "-o") {
		t.Errorf("sftp has no connection pool option: %v", spec.Args)
	}
}

func TestBuildSpec_ExtraArgsPrecedeTargets(t *testing.T) {
	spec, err := BuildSpec(Request{
		Command:    CommandBackup,
		Repository: "/repo",
		Targets:    []string{"/data"},
		ExtraArgs:  []string{"--exclude", "*.tmp"},
	}, types.DefaultProfile(types.ProviderLocal))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := argValue(t, spec.Args, "--exclude"); got != "*.tmp" {
		t.Errorf("exclude = %q", got)
	}
	if spec.Args[len(spec.Args)-1] != "/data" {
		t.Errorf("target must be last: %v", spec.Args)
	}
}

func TestBuildSpec_Validation(t *testing.T) {
	profile := types.DefaultProfile(types.ProviderLocal)

	if _, err := BuildSpec(Request{Command: "prune", Repository: "/r"}, profile); err == nil {
		t.Error("unknown command should be rejected")
	}
	if _, err := BuildSpec(Request{Command: CommandBackup, Repository: "/r"}, profile); err == nil {
		t.Error("backup without targets should be rejected")
	}
	if _, err := BuildSpec(Request{Command: CommandCheck}, profile); err == nil {
		t.Error("missing repository should be rejected")
	}
}

func TestBuildSpec_BinaryOverride(t *testing.T) {
	spec, err := BuildSpec(Request{
		Command:    CommandSnapshots,
		Repository: "/repo",
		BinaryPath: "/opt/restic/restic",
	}, types.DefaultProfile(types.ProviderLocal))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if spec.Executable != "/opt/restic/restic" {
		t.Errorf("executable = %q", spec.Executable)
	}
}

func TestBuildSpec_PasswordRedactedInLogsView(t *testing.T) {
	spec, err := BuildSpec(Request{
		Command:    CommandCheck,
		Repository: "/repo",
		Password:   "hunter2",
	}, types.DefaultProfile(types.ProviderLocal))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	redacted := spec.RedactedEnv()
	if redacted["RESTIC_PASSWORD"] == "hunter2" {
		t.Error("redacted view leaked the password")
	}
	if redacted["RESTIC_PASSWORD"] != types.RedactedValue {
		t.Errorf("redacted value = %q", redacted["RESTIC_PASSWORD"])
	}
}

func TestCommand_Valid(t *testing.T) {
	for _, c := range Commands() {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Command("prune").Valid() {
		t.Error("prune is not supported")
	}
}

func TestBuildSpec_DefaultTimeout(t *testing.T) {
	profile := types.ProviderProfile{Provider: types.ProviderLocal, MaxAttempts: 1}
	spec, err := BuildSpec(Request{Command: CommandCheck, Repository: "/repo"}, profile)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if spec.Timeout != 5*time.Minute {
		t.Errorf("timeout = %s, want default 5m", spec.Timeout)
	}
}

func TestTransfers(t *testing.T) {
	if !Transfers(CommandBackup) {
		t.Error("backup moves payload and must be tracked")
	}
	for _, c := range []Command{CommandRestore, CommandCheck, CommandSnapshots, CommandInit, CommandStats} {
		if Transfers(c) {
			t.Errorf("%s should not be tracked as a transfer", c)
		}
	}
	if Transfers(Command("prune")) {
		t.Error("unknown commands are never transfers")
	}
}
