package archive

import (
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreWithFactory("test-transfers", lode.NewMemoryFactory(), nil, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

func terminalState(id string, provider types.Provider, status types.TransferStatus, updated time.Time) types.TransferState {
	return types.TransferState{
		ID:         id,
		Provider:   provider,
		BytesDone:  1000,
		TotalBytes: 1000,
		StartedAt:  updated.Add(-time.Minute),
		UpdatedAt:  updated,
		Status:     status,
	}
}

func TestStore_ArchiveAndQuery(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := s.Archive(t.Context(), []types.TransferState{
		terminalState("t1", types.ProviderS3, types.TransferCompleted, now),
		terminalState("t2", types.ProviderB2, types.TransferFailed, now),
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	out, err := s.Query(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}

	byID := map[string]types.TransferState{}
	for _, st := range out {
		byID[st.ID] = st
	}
	t1 := byID["t1"]
	if t1.Provider != types.ProviderS3 || t1.Status != types.TransferCompleted {
		t.Errorf("t1 = %+v", t1)
	}
	if t1.BytesDone != 1000 || !t1.UpdatedAt.Equal(now) {
		t.Errorf("t1 fields lost on round trip: %+v", t1)
	}
}

func TestStore_RejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)

	err := s.Archive(t.Context(), []types.TransferState{{
		ID:     "live",
		Status: types.TransferInProgress,
	}})
	if err == nil {
		t.Fatal("non-terminal transfers must not be archived")
	}
}

func TestStore_ArchiveEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Archive(t.Context(), nil); err != nil {
		t.Fatalf("empty archive: %v", err)
	}
	if _, err := s.Query(t.Context(), Filter{}); !errors.Is(err, ErrNoTransfersFound) {
		t.Errorf("query after empty archive: %v, want ErrNoTransfersFound", err)
	}
}

func TestStore_QueryFilters(t *testing.T) {
	s := newTestStore(t)
	old := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := s.Archive(t.Context(), []types.TransferState{
		terminalState("s3-done", types.ProviderS3, types.TransferCompleted, recent),
		terminalState("s3-failed", types.ProviderS3, types.TransferFailed, recent),
		terminalState("b2-old", types.ProviderB2, types.TransferCompleted, old),
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	t.Run("by provider", func(t *testing.T) {
		out, err := s.Query(t.Context(), Filter{Provider: types.ProviderS3})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(out) != 2 {
			t.Errorf("got %d, want 2", len(out))
		}
	})

	t.Run("by status", func(t *testing.T) {
		out, err := s.Query(t.Context(), Filter{Status: types.TransferFailed})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(out) != 1 || out[0].ID != "s3-failed" {
			t.Errorf("out = %+v", out)
		}
	})

	t.Run("by since", func(t *testing.T) {
		out, err := s.Query(t.Context(), Filter{Since: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		for _, st := range out {
			if st.ID == "b2-old" {
				t.Error("since filter leaked an old record")
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		out, err := s.Query(t.Context(), Filter{Limit: 1})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(out) != 1 {
			t.Errorf("got %d, want 1", len(out))
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := s.Query(t.Context(), Filter{Provider: types.ProviderSFTP})
		if !errors.Is(err, ErrNoTransfersFound) {
			t.Errorf("err = %v, want ErrNoTransfersFound", err)
		}
	})
}

func TestStore_QueryNewestSnapshotFirst(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.Archive(t.Context(), []types.TransferState{
		terminalState("first", types.ProviderS3, types.TransferCompleted, now),
	}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.Archive(t.Context(), []types.TransferState{
		terminalState("second", types.ProviderS3, types.TransferCompleted, now.Add(time.Hour)),
	}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	out, err := s.Query(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 || out[0].ID != "second" {
		t.Errorf("order = %v, want newest snapshot first", ids(out))
	}
}

func TestStore_MetricsRecorded(t *testing.T) {
	collector := metrics.NewCollector("", "", "")
	s, err := NewStoreWithFactory("test-transfers", lode.NewMemoryFactory(), nil, collector)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	now := time.Now().UTC()
	if err := s.Archive(t.Context(), []types.TransferState{
		terminalState("t1", types.ProviderS3, types.TransferCompleted, now),
	}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if snap := collector.Snapshot(); snap.ArchiveWriteSuccess != 1 {
		t.Errorf("archive_write_success = %d, want 1", snap.ArchiveWriteSuccess)
	}
}

func TestParseS3Path(t *testing.T) {
	bucket, prefix := ParseS3Path("my-bucket/history/drover")
	if bucket != "my-bucket" || prefix != "history/drover" {
		t.Errorf("parsed %q / %q", bucket, prefix)
	}
	bucket, prefix = ParseS3Path("bare-bucket")
	if bucket != "bare-bucket" || prefix != "" {
		t.Errorf("parsed %q / %q", bucket, prefix)
	}
}

func ids(states []types.TransferState) []string {
	out := make([]string, len(states))
	for i, st := range states {
		out[i] = st.ID
	}
	return out
}
