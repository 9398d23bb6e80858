package metrics

import (
	"sync"
	"testing"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// None of these may panic on a nil receiver.
	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed()
	c.IncRunTimedOut()
	c.IncRunCancelled()
	c.IncSpawnFailure()
	c.IncRetry()
	c.IncSnapshotPublished()
	c.IncSnapshotDropped()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()
	c.AbsorbRouterStats(1, 2, 3)

	snap := c.Snapshot()
	if snap.RunsStarted != 0 {
		t.Errorf("nil collector snapshot should be zero, got %+v", snap)
	}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("run-1", "backup", "s3")

	c.IncRunStarted()
	c.IncRunFailed()
	c.IncRetry()
	c.IncRetry()
	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncSnapshotPublished()
	c.IncSnapshotDropped()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()
	c.IncSpawnFailure()
	c.IncRunTimedOut()
	c.IncRunCancelled()

	snap := c.Snapshot()

	if snap.RunsStarted != 2 {
		t.Errorf("runs_started = %d, want 2", snap.RunsStarted)
	}
	if snap.RunsCompleted != 1 || snap.RunsFailed != 1 {
		t.Errorf("completed/failed = %d/%d, want 1/1", snap.RunsCompleted, snap.RunsFailed)
	}
	if snap.RetriesAttempted != 2 {
		t.Errorf("retries = %d, want 2", snap.RetriesAttempted)
	}
	if snap.RunsTimedOut != 1 || snap.RunsCancelled != 1 || snap.SpawnFailures != 1 {
		t.Errorf("timeout/cancel/spawn = %d/%d/%d, want 1/1/1",
			snap.RunsTimedOut, snap.RunsCancelled, snap.SpawnFailures)
	}
	if snap.RunID != "run-1" || snap.Command != "backup" || snap.Provider != "s3" {
		t.Errorf("dimensions not carried: %+v", snap)
	}
}

func TestCollector_AbsorbRouterStats_Accumulates(t *testing.T) {
	c := NewCollector("", "", "")

	// One absorb per router: stdout then stderr.
	c.AbsorbRouterStats(100, 5, 1)
	c.AbsorbRouterStats(40, 0, 0)

	snap := c.Snapshot()
	if snap.LinesRouted != 140 {
		t.Errorf("lines_routed = %d, want 140", snap.LinesRouted)
	}
	if snap.LinesDropped != 5 {
		t.Errorf("lines_dropped = %d, want 5", snap.LinesDropped)
	}
	if snap.SinkPanics != 1 {
		t.Errorf("sink_panics = %d, want 1", snap.SinkPanics)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("", "", "")
	c.IncRunStarted()

	snap := c.Snapshot()
	c.IncRunStarted()

	if snap.RunsStarted != 1 {
		t.Errorf("snapshot mutated after capture: %d", snap.RunsStarted)
	}
	if got := c.Snapshot().RunsStarted; got != 2 {
		t.Errorf("collector lost increment after snapshot: %d", got)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("", "", "")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncSnapshotPublished()
			c.AbsorbRouterStats(1, 0, 0)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.SnapshotsPublished != 50 {
		t.Errorf("snapshots_published = %d, want 50", snap.SnapshotsPublished)
	}
	if snap.LinesRouted != 50 {
		t.Errorf("lines_routed = %d, want 50", snap.LinesRouted)
	}
}
