// Package archive persists finished transfers to a lode dataset. Terminal
// records evicted from the registry land here, partitioned by provider, day,
// and status, and the history command reads them back out.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/metrics"
	"github.com/justapithecus/drover/types"
)

// RecordKindTransfer is the record discriminator for archived transfers.
const RecordKindTransfer = "transfer"

// DefaultDataset is the dataset ID used when config leaves it empty.
const DefaultDataset = "drover-transfers"

// Store writes and reads archived transfer records.
type Store struct {
	dataset   lode.Dataset
	logger    *log.Logger
	collector *metrics.Collector
}

// NewStore creates a filesystem-backed store rooted at root.
func NewStore(dataset, root string, logger *log.Logger, collector *metrics.Collector) (*Store, error) {
	return NewStoreWithFactory(dataset, lode.NewFSFactory(root), logger, collector)
}

// NewStoreWithFactory creates a store with a custom lode store factory.
// Use lode.NewMemoryFactory() for testing.
func NewStoreWithFactory(dataset string, factory lode.StoreFactory, logger *log.Logger, collector *metrics.Collector) (*Store, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("provider", "day", "status"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: create dataset: %w", err)
	}
	return &Store{dataset: ds, logger: logger, collector: collector}, nil
}

// Archive writes terminal transfer states as one snapshot. Non-terminal
// states are rejected: the archive only holds finished transfers.
func (s *Store) Archive(ctx context.Context, states []types.TransferState) error {
	if len(states) == 0 {
		return nil
	}

	records := make([]any, 0, len(states))
	for i := range states {
		st := &states[i]
		if !st.Terminal() {
			return fmt.Errorf("archive: transfer %s is not terminal (%s)", st.ID, st.Status)
		}
		records = append(records, toRecordMap(st))
	}

	if _, err := s.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		s.collector.IncArchiveWriteFailure()
		return fmt.Errorf("archive: write: %w", err)
	}

	s.collector.IncArchiveWriteSuccess()
	s.logger.Info("transfers archived", map[string]any{"count": len(records)})
	return nil
}

// toRecordMap flattens a transfer state into its storage record, partition
// keys included.
func toRecordMap(st *types.TransferState) map[string]any {
	return map[string]any{
		"record_kind": RecordKindTransfer,
		"id":          st.ID,
		"provider":    string(st.Provider),
		"day":         st.UpdatedAt.UTC().Format("2006-01-02"),
		"status":      string(st.Status),
		"bytes_done":  st.BytesDone,
		"total_bytes": st.TotalBytes,
		"started_at":  st.StartedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  st.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"retry_count": st.RetryCount,
		"error":       st.Error,
	}
}
