// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during supervised runs. It is a leaf
// package with no internal dependencies. Output-routing counters are absorbed
// from the router at run completion rather than recorded live, avoiding
// double-counting between the router's own bookkeeping and the collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64 `json:"runs_started"`
	RunsCompleted int64 `json:"runs_completed"`
	RunsFailed    int64 `json:"runs_failed"`
	RunsTimedOut  int64 `json:"runs_timed_out"`
	RunsCancelled int64 `json:"runs_cancelled"`
	SpawnFailures int64 `json:"spawn_failures"`

	// Retry
	RetriesAttempted int64 `json:"retries_attempted"`

	// Output routing (absorbed from router stats after drain)
	LinesRouted  int64 `json:"lines_routed"`
	LinesDropped int64 `json:"lines_dropped"`
	SinkPanics   int64 `json:"sink_panics"`

	// Progress stream
	SnapshotsPublished int64 `json:"snapshots_published"`
	SnapshotsDropped   int64 `json:"snapshots_dropped"`

	// Archive / storage
	ArchiveWriteSuccess int64 `json:"archive_write_success"`
	ArchiveWriteFailure int64 `json:"archive_write_failure"`

	// Dimensions (informational, set at construction)
	RunID    string `json:"run_id,omitempty"`
	Command  string `json:"command,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Collector accumulates metrics during supervised runs.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so components can treat their collector as optional.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64
	runsTimedOut  int64
	runsCancelled int64
	spawnFailures int64

	retriesAttempted int64

	linesRouted  int64
	linesDropped int64
	sinkPanics   int64

	snapshotsPublished int64
	snapshotsDropped   int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	runID    string
	command  string
	provider string
}

// NewCollector creates a Collector with dimension labels.
// All dimensions are optional and purely informational.
func NewCollector(runID, command, provider string) *Collector {
	return &Collector{
		runID:    runID,
		command:  command,
		provider: provider,
	}
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsStarted++
	c.mu.Unlock()
}

// IncRunCompleted records a successful run completion.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCompleted++
	c.mu.Unlock()
}

// IncRunFailed records a run that exited non-zero.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.mu.Unlock()
}

// IncRunTimedOut records a watchdog kill.
func (c *Collector) IncRunTimedOut() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsTimedOut++
	c.mu.Unlock()
}

// IncRunCancelled records a caller-driven cancellation.
func (c *Collector) IncRunCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsCancelled++
	c.mu.Unlock()
}

// IncSpawnFailure records a child process that never started.
func (c *Collector) IncSpawnFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spawnFailures++
	c.mu.Unlock()
}

// IncRetry records one retry attempt granted by the coordinator.
func (c *Collector) IncRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retriesAttempted++
	c.mu.Unlock()
}

// --- Progress stream ---

// IncSnapshotPublished records a progress snapshot delivered to the broadcast.
func (c *Collector) IncSnapshotPublished() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.snapshotsPublished++
	c.mu.Unlock()
}

// IncSnapshotDropped records a snapshot evicted from a slow subscriber.
func (c *Collector) IncSnapshotDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.snapshotsDropped++
	c.mu.Unlock()
}

// --- Archive / storage ---
// Archive counters are per-call, not per-record. A single WriteStates call
// with N states counts as 1 success.

// IncArchiveWriteSuccess records a successful archive write (per-call).
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteSuccess++
	c.mu.Unlock()
}

// IncArchiveWriteFailure records a failed archive write (per-call).
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteFailure++
	c.mu.Unlock()
}

// --- Output routing (absorbed from router stats) ---

// AbsorbRouterStats adds routing counters from a drained router into the
// collector. Called once per router after its stream ends; counters
// accumulate across the stdout and stderr routers of a run.
func (c *Collector) AbsorbRouterStats(routed, dropped, panics int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesRouted += routed
	c.linesDropped += dropped
	c.sinkPanics += panics
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsFailed:    c.runsFailed,
		RunsTimedOut:  c.runsTimedOut,
		RunsCancelled: c.runsCancelled,
		SpawnFailures: c.spawnFailures,

		RetriesAttempted: c.retriesAttempted,

		LinesRouted:  c.linesRouted,
		LinesDropped: c.linesDropped,
		SinkPanics:   c.sinkPanics,

		SnapshotsPublished: c.snapshotsPublished,
		SnapshotsDropped:   c.snapshotsDropped,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		RunID:    c.runID,
		Command:  c.command,
		Provider: c.provider,
	}
}
