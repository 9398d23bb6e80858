// Package types defines core domain types for the Drover engine.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout is the watchdog limit applied when a ProcessSpec does not
// carry its own. Backup and restore runs against cold storage routinely take
// minutes, so the default is deliberately generous.
const DefaultTimeout = 300 * time.Second

// RedactedValue replaces sensitive environment values in logs and reports.
const RedactedValue = "[redacted]"

// sensitiveEnvMarkers are substrings that mark an environment key as holding
// a secret. Matching is case-insensitive.
var sensitiveEnvMarkers = []string{"PASSWORD", "SECRET", "TOKEN", "KEY"}

// ProcessSpec describes a single subprocess launch. Treat a spec as immutable
// once built: the supervisor operates on its own Clone, so later mutation by
// the caller cannot leak into a running process.
type ProcessSpec struct {
	// Executable is the binary to launch, absolute or resolved via PATH.
	Executable string `json:"executable" msgpack:"executable"`
	// Args are the argument vector, excluding the executable itself.
	Args []string `json:"args,omitempty" msgpack:"args,omitempty"`
	// Env holds variables merged over the inherited environment.
	// Values here win over inherited ones with the same key.
	Env map[string]string `json:"-" msgpack:"-"`
	// WorkingDir is the working directory; empty inherits the parent's.
	WorkingDir string `json:"working_dir,omitempty" msgpack:"working_dir,omitempty"`
	// Timeout is the watchdog limit. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout" msgpack:"timeout"`
}

// Validate checks a spec before launch.
func (s *ProcessSpec) Validate() error {
	if s.Executable == "" {
		return fmt.Errorf("process spec: executable is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("process spec: timeout must not be negative, got %s", s.Timeout)
	}
	return nil
}

// EffectiveTimeout resolves the watchdog limit, applying DefaultTimeout
// when the spec does not set one.
func (s *ProcessSpec) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Clone returns a deep copy. Args and Env are copied so the original and the
// clone cannot observe each other's mutations.
func (s *ProcessSpec) Clone() ProcessSpec {
	out := ProcessSpec{
		Executable: s.Executable,
		WorkingDir: s.WorkingDir,
		Timeout:    s.Timeout,
	}
	if len(s.Args) > 0 {
		out.Args = make([]string, len(s.Args))
		copy(out.Args, s.Args)
	}
	if len(s.Env) > 0 {
		out.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			out.Env[k] = v
		}
	}
	return out
}

// RedactedEnv returns a copy of Env with secret-bearing values masked.
// Keys containing PASSWORD, SECRET, TOKEN, or KEY (any case) are redacted.
// Safe to log.
func (s *ProcessSpec) RedactedEnv() map[string]string {
	if len(s.Env) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.Env))
	for k, v := range s.Env {
		if isSensitiveEnvKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveEnvKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range sensitiveEnvMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// ProcessResult is the outcome of a subprocess that ran to natural
// completion. Non-zero exits, timeouts, and cancellations surface as a
// ProcessError instead.
type ProcessResult struct {
	// ExitCode is the child's exit status. Always zero on the success path.
	ExitCode int `json:"exit_code" msgpack:"exit_code"`
	// Stdout is the captured standard output, line-reassembled and
	// sanitized to valid UTF-8. Never truncated.
	Stdout string `json:"stdout" msgpack:"stdout"`
	// Stderr is the captured standard error, same treatment as Stdout.
	Stderr string `json:"stderr" msgpack:"stderr"`
	// Duration is wall time from spawn to reap.
	Duration time.Duration `json:"duration" msgpack:"duration"`
}

// Success reports whether the child exited zero.
func (r *ProcessResult) Success() bool {
	return r.ExitCode == 0
}
