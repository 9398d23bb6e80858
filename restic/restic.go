// Package restic builds process specs for the restic backup tool. It owns
// the mapping from commands and provider profiles to restic's CLI surface:
// every supported operation goes through one dispatch table, so a new
// command is one table entry, not a new code path.
package restic

import (
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/drover/types"
)

// Command enumerates the restic operations the engine can supervise.
type Command string

const (
	CommandBackup    Command = "backup"
	CommandRestore   Command = "restore"
	CommandCheck     Command = "check"
	CommandSnapshots Command = "snapshots"
	CommandInit      Command = "init"
	CommandStats     Command = "stats"
)

// Valid reports whether c names a supported command.
func (c Command) Valid() bool {
	_, ok := commandTable[c]
	return ok
}

// Commands returns the supported command names in display order.
func Commands() []Command {
	return []Command{
		CommandBackup, CommandRestore, CommandCheck,
		CommandSnapshots, CommandInit, CommandStats,
	}
}

// Transfers reports whether c moves payload. Callers use this to decide
// whether a run should be tracked as a transfer at all.
func Transfers(c Command) bool {
	return commandTable[c].transfers
}

// commandSpec is one dispatch table entry: the subcommand's fixed argument
// shape and which tuning flags apply to it.
type commandSpec struct {
	// subcommand is the restic verb.
	subcommand string
	// needsTargets requires at least one positional target (backup paths,
	// restore snapshot ID).
	needsTargets bool
	// transfers marks commands that move payload and take upload tuning
	// flags; read-only commands skip them.
	transfers bool
}

var commandTable = map[Command]commandSpec{
	CommandBackup:    {subcommand: "backup", needsTargets: true, transfers: true},
	CommandRestore:   {subcommand: "restore", needsTargets: true},
	CommandCheck:     {subcommand: "check"},
	CommandSnapshots: {subcommand: "snapshots"},
	CommandInit:      {subcommand: "init"},
	CommandStats:     {subcommand: "stats"},
}

// connectionsOption maps a provider to restic's backend connection-count
// option key. Providers without a tunable connection pool are absent.
var connectionsOption = map[types.Provider]string{
	types.ProviderS3:    "s3.connections",
	types.ProviderB2:    "b2.connections",
	types.ProviderAzure: "azure.connections",
	types.ProviderGCS:   "gs.connections",
	types.ProviderREST:  "rest.connections",
	types.ProviderLocal: "local.connections",
}

// Request describes one restic invocation to build a spec for.
type Request struct {
	// Command is the operation to run.
	Command Command
	// Repository is the restic repository URL (e.g. "s3:s3.amazonaws.com/bucket").
	Repository string
	// Password opens the repository; passed via env only, never argv.
	Password string
	// Targets are positional arguments: backup paths or a restore snapshot ID.
	Targets []string
	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string
	// BinaryPath overrides the restic executable (default "restic").
	BinaryPath string
	// WorkingDir is the child's working directory.
	WorkingDir string
}

// Validate checks the request before spec construction.
func (r *Request) Validate() error {
	spec, ok := commandTable[r.Command]
	if !ok {
		return fmt.Errorf("restic: unknown command %q", r.Command)
	}
	if r.Repository == "" {
		return fmt.Errorf("restic: repository is required")
	}
	if spec.needsTargets && len(r.Targets) == 0 {
		return fmt.Errorf("restic: %s requires at least one target", r.Command)
	}
	return nil
}

// ParseProvider infers the storage provider from a repository URL prefix.
// Unrecognized schemes are treated as local paths.
func ParseProvider(repository string) types.Provider {
	scheme, _, found := strings.Cut(repository, ":")
	if !found {
		return types.ProviderLocal
	}
	switch scheme {
	case "s3":
		return types.ProviderS3
	case "b2":
		return types.ProviderB2
	case "azure":
		return types.ProviderAzure
	case "gs":
		return types.ProviderGCS
	case "sftp":
		return types.ProviderSFTP
	case "rest":
		return types.ProviderREST
	default:
		return types.ProviderLocal
	}
}

// BuildSpec maps a request and tuned profile to a supervisable process spec.
// Transfer tuning lands as restic flags: pack size, upload rate limit,
// backend connection count, and compression mode. The repository and
// password travel via env so neither appears in argv.
func BuildSpec(req Request, profile types.ProviderProfile) (types.ProcessSpec, error) {
	if err := req.Validate(); err != nil {
		return types.ProcessSpec{}, err
	}
	entry := commandTable[req.Command]

	binary := req.BinaryPath
	if binary == "" {
		binary = "restic"
	}

	args := []string{entry.subcommand, "--json"}

	if entry.transfers {
		if packMiB := profile.ChunkSize / (1 << 20); packMiB > 0 {
			args = append(args, "--pack-size", fmt.Sprintf("%d", packMiB))
		}
		if profile.RateLimit > 0 {
			// restic takes KiB/s.
			args = append(args, "--limit-upload", fmt.Sprintf("%d", profile.RateLimit/1024))
		}
		if profile.Compression != "" {
			args = append(args, "--compression", string(profile.Compression))
		}
	}
	if key, ok := connectionsOption[profile.Provider]; ok && profile.MaxConcurrent > 0 {
		args = append(args, "-o", fmt.Sprintf("%s=%d", key, profile.MaxConcurrent))
	}
	if profile.MaxAttempts > 1 {
		args = append(args, "--retry-lock", "1m")
	}

	args = append(args, req.ExtraArgs...)
	args = append(args, req.Targets...)

	env := map[string]string{
		"RESTIC_REPOSITORY": req.Repository,
	}
	if req.Password != "" {
		env["RESTIC_PASSWORD"] = req.Password
	}

	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return types.ProcessSpec{
		Executable: binary,
		Args:       args,
		Env:        env,
		WorkingDir: req.WorkingDir,
		Timeout:    timeout,
	}, nil
}
