// Package registry tracks the lifecycle of long-running transfers. The
// registry is the single writer for transfer records; every read surface
// hands out copies, so callers can hold snapshots without locking.
package registry

import (
	"sync"
	"time"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

// Registry is a mutex-serialized table of transfer states keyed by ID.
// Mutations on unknown or terminal transfers are no-ops: late progress
// updates from a finished run are expected and ignored rather than errors.
type Registry struct {
	logger    *log.Logger
	collector *metrics.Collector

	mu        sync.Mutex
	transfers map[string]*types.TransferState

	// now is swappable for tests.
	now func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry. logger and collector may be nil.
func New(logger *log.Logger, collector *metrics.Collector, opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:    logger,
		collector: collector,
		transfers: make(map[string]*types.TransferState),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers a new in-progress transfer. Starting an ID that already
// exists resets it: the previous record is replaced.
func (r *Registry) Start(id string, provider types.Provider, totalBytes int64) {
	if id == "" {
		return
	}
	now := r.now()

	r.mu.Lock()
	r.transfers[id] = &types.TransferState{
		ID:         id,
		Provider:   provider,
		TotalBytes: totalBytes,
		StartedAt:  now,
		UpdatedAt:  now,
		Status:     types.TransferInProgress,
	}
	r.mu.Unlock()

	r.logger.Info("transfer started", map[string]any{
		"transfer_id": id,
		"provider":    string(provider),
		"total_bytes": totalBytes,
	})
}

// Update records transfer progress. Unknown and terminal IDs are ignored.
// BytesDone never regresses: a stale smaller value is dropped.
func (r *Registry) Update(id string, bytesDone int64) {
	r.mutate(id, func(t *types.TransferState) {
		if bytesDone > t.BytesDone {
			t.BytesDone = bytesDone
		}
	})
}

// SetTotal records the expected payload size once the tool reports it.
// Totals only grow; a smaller late estimate never shrinks the target.
func (r *Registry) SetTotal(id string, totalBytes int64) {
	r.mutate(id, func(t *types.TransferState) {
		if totalBytes > t.TotalBytes {
			t.TotalBytes = totalBytes
		}
	})
}

// Pause suspends an in-progress transfer.
func (r *Registry) Pause(id string) {
	r.mutate(id, func(t *types.TransferState) {
		if t.Status == types.TransferInProgress {
			t.Status = types.TransferPaused
		}
	})
}

// Resume returns a paused transfer to in-progress.
func (r *Registry) Resume(id string) {
	r.mutate(id, func(t *types.TransferState) {
		if t.Status == types.TransferPaused {
			t.Status = types.TransferInProgress
		}
	})
}

// Complete marks a transfer as terminally successful. Completion pins
// BytesDone to TotalBytes when a total is known.
func (r *Registry) Complete(id string) {
	r.mutate(id, func(t *types.TransferState) {
		t.Status = types.TransferCompleted
		if t.TotalBytes > 0 {
			t.BytesDone = t.TotalBytes
		}
	})
}

// Fail marks a transfer as terminally failed, recording the cause.
func (r *Registry) Fail(id string, cause error) {
	r.mutate(id, func(t *types.TransferState) {
		t.Status = types.TransferFailed
		if cause != nil {
			t.Error = cause.Error()
		}
	})
}

// IncRetry bumps the transfer's retry counter and returns it to
// in-progress if it was paused.
func (r *Registry) IncRetry(id string) {
	r.mutate(id, func(t *types.TransferState) {
		t.RetryCount++
		if t.Status == types.TransferPaused {
			t.Status = types.TransferInProgress
		}
	})
}

// Remove deletes a transfer record regardless of status.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.transfers, id)
	r.mu.Unlock()
}

// Get returns a copy of one transfer's state.
func (r *Registry) Get(id string) (types.TransferState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return types.TransferState{}, false
	}
	return *t, true
}

// Snapshot returns point-in-time copies of every tracked transfer. This is
// the sole bulk read surface; iteration order is unspecified.
func (r *Registry) Snapshot() []types.TransferState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.TransferState, 0, len(r.transfers))
	for _, t := range r.transfers {
		out = append(out, *t)
	}
	return out
}

// Len returns the number of tracked transfers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}

// EvictTerminal removes terminal transfers whose last update is older than
// olderThan and returns the evicted records for archival. olderThan zero
// evicts every terminal transfer.
func (r *Registry) EvictTerminal(olderThan time.Duration) []types.TransferState {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	var evicted []types.TransferState
	for id, t := range r.transfers {
		if !t.Terminal() {
			continue
		}
		if olderThan > 0 && t.UpdatedAt.After(cutoff) {
			continue
		}
		evicted = append(evicted, *t)
		delete(r.transfers, id)
	}
	r.mu.Unlock()

	if len(evicted) > 0 {
		r.logger.Info("evicted terminal transfers", map[string]any{
			"count": len(evicted),
		})
	}
	return evicted
}

// mutate applies fn to a live, non-terminal record under the lock. Unknown
// and terminal IDs are silently skipped; UpdatedAt is stamped on success.
func (r *Registry) mutate(id string, fn func(*types.TransferState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[id]
	if !ok || t.Terminal() {
		return
	}
	fn(t)
	t.UpdatedAt = r.now()
}
