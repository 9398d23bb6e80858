package types

import (
	"errors"
	"fmt"
	"time"
)

// ProcessErrorKind discriminates failure modes of a supervised run.
type ProcessErrorKind int

const (
	// ProcessErrorSpawn means the child never started (missing binary,
	// permission denied, pipe setup failure).
	ProcessErrorSpawn ProcessErrorKind = iota
	// ProcessErrorExec means the child ran and exited non-zero.
	ProcessErrorExec
	// ProcessErrorTimeout means the watchdog killed the child at its limit.
	ProcessErrorTimeout
	// ProcessErrorCancelled means the caller's context ended the run.
	ProcessErrorCancelled
)

// String returns the wire/report name for the kind.
func (k ProcessErrorKind) String() string {
	switch k {
	case ProcessErrorSpawn:
		return "spawn_failed"
	case ProcessErrorExec:
		return "execution_failed"
	case ProcessErrorTimeout:
		return "timed_out"
	case ProcessErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProcessError is the single error type a supervised run can surface.
// The kind determines which payload fields are meaningful.
type ProcessError struct {
	// Kind discriminates the failure mode.
	Kind ProcessErrorKind
	// ExitCode is the child's exit status (exec failures only).
	ExitCode int
	// Message is captured diagnostic text: stderr for exec failures,
	// falling back to stdout when stderr is empty.
	Message string
	// Limit is the watchdog duration that fired (timeouts only).
	Limit time.Duration
	// Err is the underlying cause, if any.
	Err error
}

func (e *ProcessError) Error() string {
	switch e.Kind {
	case ProcessErrorSpawn:
		return fmt.Sprintf("spawn failed: %v", e.Err)
	case ProcessErrorExec:
		if e.Message != "" {
			return fmt.Sprintf("execution failed with exit code %d: %s", e.ExitCode, e.Message)
		}
		return fmt.Sprintf("execution failed with exit code %d", e.ExitCode)
	case ProcessErrorTimeout:
		return fmt.Sprintf("timed out after %s", e.Limit)
	case ProcessErrorCancelled:
		return "cancelled"
	default:
		return "unknown process error"
	}
}

func (e *ProcessError) Unwrap() error { return e.Err }

// NewSpawnError wraps a launch failure.
func NewSpawnError(err error) *ProcessError {
	return &ProcessError{Kind: ProcessErrorSpawn, Err: err}
}

// NewExecError records a non-zero exit together with captured diagnostics.
func NewExecError(exitCode int, message string) *ProcessError {
	return &ProcessError{Kind: ProcessErrorExec, ExitCode: exitCode, Message: message}
}

// NewTimeoutError records a watchdog kill at the given limit.
func NewTimeoutError(limit time.Duration) *ProcessError {
	return &ProcessError{Kind: ProcessErrorTimeout, Limit: limit}
}

// NewCancelledError records a caller-driven cancellation. cause is typically
// the context error.
func NewCancelledError(cause error) *ProcessError {
	return &ProcessError{Kind: ProcessErrorCancelled, Err: cause}
}

// AsProcessError unwraps err to a *ProcessError when one is present.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsSpawnFailure reports whether err is a spawn failure.
func IsSpawnFailure(err error) bool {
	pe, ok := AsProcessError(err)
	return ok && pe.Kind == ProcessErrorSpawn
}

// IsExecFailure reports whether err is a non-zero exit.
func IsExecFailure(err error) bool {
	pe, ok := AsProcessError(err)
	return ok && pe.Kind == ProcessErrorExec
}

// IsTimeout reports whether err is a watchdog timeout.
func IsTimeout(err error) bool {
	pe, ok := AsProcessError(err)
	return ok && pe.Kind == ProcessErrorTimeout
}

// IsCancelled reports whether err is a caller cancellation.
func IsCancelled(err error) bool {
	pe, ok := AsProcessError(err)
	return ok && pe.Kind == ProcessErrorCancelled
}
