package runtime

import (
	"sync"

	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

// DefaultSubscriberBuffer is the per-subscriber channel capacity. Progress
// snapshots arrive at most a few times per second from the backup tool, so a
// small window is enough for any consumer that is actually reading.
const DefaultSubscriberBuffer = 64

// ProgressBroadcaster fans ProgressSnapshot values out to any number of
// subscribers. The producer never blocks: a subscriber that stops reading
// loses its oldest buffered snapshots, not the producer's throughput. With no
// subscribers attached, published snapshots are simply not retained.
//
// The stream ends with exactly one terminal signal: Finish closes all
// subscriber channels so `for range` loops terminate cleanly, and Abort
// pushes a terminal aborted snapshot first so consumers always observe a
// terminal state instead of stalling.
type ProgressBroadcaster struct {
	mu          sync.Mutex
	subs        []chan types.ProgressSnapshot
	buffer      int
	finished    bool
	highPercent float64
	collector   *metrics.Collector
}

// NewProgressBroadcaster creates a broadcaster with the default per-subscriber
// buffer.
func NewProgressBroadcaster(collector *metrics.Collector) *ProgressBroadcaster {
	return &ProgressBroadcaster{
		buffer:    DefaultSubscriberBuffer,
		collector: collector,
	}
}

// Subscribe registers a new consumer and returns its receive channel.
// Subscribing after Finish returns an already-closed channel, so late
// consumers terminate immediately instead of hanging.
func (b *ProgressBroadcaster) Subscribe() <-chan types.ProgressSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.ProgressSnapshot, b.buffer)
	if b.finished {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers a snapshot to every subscriber. Percent is clamped so a
// consumer never observes a regression within one operation; only a terminal
// aborted snapshot bypasses the clamp. Publishing after Finish is a no-op.
func (b *ProgressBroadcaster) Publish(snap types.ProgressSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return
	}

	if !snap.Aborted {
		if snap.Percent < b.highPercent {
			snap.Percent = b.highPercent
		} else {
			b.highPercent = snap.Percent
		}
	}

	b.collector.IncSnapshotPublished()
	for _, ch := range b.subs {
		b.send(ch, snap)
	}
}

// send performs a non-blocking drop-oldest delivery into one subscriber
// channel. The subscriber may be draining concurrently, so eviction and the
// retry send both stay non-blocking.
func (b *ProgressBroadcaster) send(ch chan types.ProgressSnapshot, snap types.ProgressSnapshot) {
	select {
	case ch <- snap:
		return
	default:
	}

	// Full: evict the oldest buffered snapshot and try once more.
	select {
	case <-ch:
		b.collector.IncSnapshotDropped()
	default:
	}
	select {
	case ch <- snap:
	default:
		b.collector.IncSnapshotDropped()
	}
}

// Finish marks that no further snapshots will arrive and closes all
// subscriber channels. Idempotent.
func (b *ProgressBroadcaster) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finishLocked()
}

func (b *ProgressBroadcaster) finishLocked() {
	if b.finished {
		return
	}
	b.finished = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Abort pushes a terminal aborted snapshot and then finishes the stream.
// Used on cancellation or timeout: consumers observe an explicit terminal
// state rather than a silently closed channel mid-operation. Idempotent; a
// no-op after Finish.
func (b *ProgressBroadcaster) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return
	}

	terminal := types.ProgressSnapshot{Aborted: true}
	b.collector.IncSnapshotPublished()
	for _, ch := range b.subs {
		b.send(ch, terminal)
	}
	b.finishLocked()
}

// Finished reports whether the stream has been terminated.
func (b *ProgressBroadcaster) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}
