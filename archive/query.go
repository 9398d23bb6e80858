package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/drover/types"
)

// ErrNoTransfersFound is returned when a query matches no archived transfers.
var ErrNoTransfersFound = errors.New("no archived transfers found")

// Filter narrows a history query. Zero values match everything.
type Filter struct {
	// Provider restricts results to one backend.
	Provider types.Provider
	// Status restricts results to one terminal status.
	Status types.TransferStatus
	// Since drops records last updated before this time.
	Since time.Time
	// Limit caps the number of returned records; zero means no cap.
	Limit int
}

// Query reads archived transfers matching filter, newest snapshot first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]types.TransferState, error) {
	snapshots, err := s.dataset.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: list snapshots: %w", err)
	}

	var out []types.TransferState
	// Latest first: snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		data, err := s.dataset.Read(ctx, snapshots[i].ID)
		if err != nil {
			return nil, fmt.Errorf("archive: read snapshot %s: %w", snapshots[i].ID, err)
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindTransfer {
				continue
			}
			state := fromRecordMap(record)
			if !matches(&state, filter) {
				continue
			}
			out = append(out, state)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrNoTransfersFound
	}
	return out, nil
}

func matches(st *types.TransferState, filter Filter) bool {
	if filter.Provider != "" && st.Provider != filter.Provider {
		return false
	}
	if filter.Status != "" && st.Status != filter.Status {
		return false
	}
	if !filter.Since.IsZero() && st.UpdatedAt.Before(filter.Since) {
		return false
	}
	return true
}

// fromRecordMap rebuilds a transfer state from its storage record. Records
// come back through the JSONL codec, so numbers arrive as float64.
func fromRecordMap(record map[string]any) types.TransferState {
	return types.TransferState{
		ID:         toString(record["id"]),
		Provider:   types.Provider(toString(record["provider"])),
		BytesDone:  toInt64(record["bytes_done"]),
		TotalBytes: toInt64(record["total_bytes"]),
		StartedAt:  toTime(record["started_at"]),
		UpdatedAt:  toTime(record["updated_at"]),
		RetryCount: int(toInt64(record["retry_count"])),
		Status:     types.TransferStatus(toString(record["status"])),
		Error:      toString(record["error"]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
