// Package adapter defines the outbound notification boundary. Adapters
// publish transfer completion events to downstream systems; the CLI owns
// adapter lifecycle and users provide configuration only.
package adapter

import "context"

// EventType is the single event type adapters currently publish.
const EventType = "transfer_completed"

// TransferCompletedEvent is the payload published when a supervised run and
// its tracked transfer reach a terminal state.
type TransferCompletedEvent struct {
	EventType  string `json:"event_type"` // always "transfer_completed"
	RunID      string `json:"run_id"`
	TransferID string `json:"transfer_id,omitempty"`
	Command    string `json:"command"`
	Provider   string `json:"provider"`
	Outcome    string `json:"outcome"` // success, execution_failed, timed_out, ...
	ExitCode   int    `json:"exit_code"`
	BytesDone  int64  `json:"bytes_done"`
	TotalBytes int64  `json:"total_bytes"`
	Attempts   int    `json:"attempts"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"` // ISO 8601
}

// Adapter publishes transfer completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a completion event downstream. Must respect context
	// cancellation and deadlines.
	Publish(ctx context.Context, event *TransferCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
