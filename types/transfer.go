package types

import (
	"fmt"
	"time"
)

// TransferStatus is the lifecycle state of a tracked transfer.
type TransferStatus string

const (
	// TransferInProgress means bytes are (or should be) moving.
	TransferInProgress TransferStatus = "in_progress"
	// TransferPaused means the transfer is suspended but resumable.
	TransferPaused TransferStatus = "paused"
	// TransferCompleted is terminal success.
	TransferCompleted TransferStatus = "completed"
	// TransferFailed is terminal failure.
	TransferFailed TransferStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferFailed
}

// Valid reports whether s is a known status.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferInProgress, TransferPaused, TransferCompleted, TransferFailed:
		return true
	default:
		return false
	}
}

// TransferState is the registry's record of one transfer. The registry hands
// out copies only; a TransferState value never shares memory with the
// registry's internal record.
type TransferState struct {
	// ID is the caller-assigned transfer identifier, unique per transfer.
	ID string `json:"id" msgpack:"id"`
	// Provider is the storage backend the transfer targets.
	Provider Provider `json:"provider" msgpack:"provider"`
	// BytesDone is the payload transferred so far.
	BytesDone int64 `json:"bytes_done" msgpack:"bytes_done"`
	// TotalBytes is the expected payload size; zero while unknown.
	TotalBytes int64 `json:"total_bytes" msgpack:"total_bytes"`
	// StartedAt is when the transfer was registered.
	StartedAt time.Time `json:"started_at" msgpack:"started_at"`
	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
	// RetryCount is how many times the transfer has been re-attempted.
	RetryCount int `json:"retry_count" msgpack:"retry_count"`
	// Status is the lifecycle state.
	Status TransferStatus `json:"status" msgpack:"status"`
	// Error is the failure reason, set only when Status is failed.
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Validate checks structural requirements on a state record.
func (t *TransferState) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transfer state: id is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("transfer state: invalid status %q", t.Status)
	}
	if t.BytesDone < 0 || t.TotalBytes < 0 {
		return fmt.Errorf("transfer state: byte counts must not be negative")
	}
	return nil
}

// Terminal reports whether the transfer reached a terminal status.
func (t *TransferState) Terminal() bool {
	return t.Status.Terminal()
}

// Elapsed is the span between start and last update. Derived, never stored.
func (t *TransferState) Elapsed() time.Duration {
	if t.UpdatedAt.Before(t.StartedAt) {
		return 0
	}
	return t.UpdatedAt.Sub(t.StartedAt)
}

// Rate is the mean transfer rate in bytes per second over Elapsed.
// Returns zero when no time has passed or no bytes have moved.
func (t *TransferState) Rate() float64 {
	elapsed := t.Elapsed().Seconds()
	if elapsed <= 0 || t.BytesDone <= 0 {
		return 0
	}
	return float64(t.BytesDone) / elapsed
}

// ETA estimates time remaining from the mean rate. The second return is
// false when no estimate exists: unknown total, zero rate, or already done.
func (t *TransferState) ETA() (time.Duration, bool) {
	if t.TotalBytes <= 0 || t.BytesDone >= t.TotalBytes {
		return 0, false
	}
	rate := t.Rate()
	if rate <= 0 {
		return 0, false
	}
	remaining := float64(t.TotalBytes-t.BytesDone) / rate
	return time.Duration(remaining * float64(time.Second)), true
}
