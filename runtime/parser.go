package runtime

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/justapithecus/drover/types"
)

// Message type discriminants in the backup tool's --json stdout stream.
const (
	messageTypeStatus  = "status"
	messageTypeSummary = "summary"
)

// statusMessage is the periodic progress message emitted during an operation.
type statusMessage struct {
	MessageType    string   `json:"message_type"`
	PercentDone    float64  `json:"percent_done"`
	TotalFiles     int64    `json:"total_files"`
	FilesDone      int64    `json:"files_done"`
	TotalBytes     int64    `json:"total_bytes"`
	BytesDone      int64    `json:"bytes_done"`
	SecondsElapsed float64  `json:"seconds_elapsed"`
	CurrentFiles   []string `json:"current_files"`
}

// SummaryMessage is the terminal message emitted when an operation finishes.
// Retained for run reports; fields beyond the progress totals are the backup
// tool's own accounting.
type SummaryMessage struct {
	MessageType         string  `json:"message_type"`
	FilesNew            int64   `json:"files_new"`
	FilesChanged        int64   `json:"files_changed"`
	FilesUnmodified     int64   `json:"files_unmodified"`
	TotalFilesProcessed int64   `json:"total_files_processed"`
	TotalBytesProcessed int64   `json:"total_bytes_processed"`
	DataAdded           int64   `json:"data_added"`
	TotalDuration       float64 `json:"total_duration"`
	SnapshotID          string  `json:"snapshot_id"`
}

// StatusParser consumes stdout lines, discriminates the machine-readable
// status stream from human noise, and publishes progress snapshots. It
// implements sink.LineSink and is registered on the supervisor's stdout
// router.
//
// Unknown message types, non-JSON lines, and stderr lines are ignored — the
// backup tool freely mixes human-readable text into its streams.
type StatusParser struct {
	broadcaster *ProgressBroadcaster

	mu      sync.Mutex
	summary *SummaryMessage
	final   bool
}

// NewStatusParser creates a parser publishing into broadcaster.
func NewStatusParser(broadcaster *ProgressBroadcaster) *StatusParser {
	return &StatusParser{broadcaster: broadcaster}
}

// Consume inspects one output line and publishes a snapshot when the line is
// a status or summary message.
func (p *StatusParser) Consume(line types.OutputLine) {
	if line.Origin != types.OriginStdout {
		return
	}
	if len(line.Text) == 0 || line.Text[0] != '{' {
		return
	}

	// Probe the discriminant before committing to a full decode.
	switch gjson.Get(line.Text, "message_type").String() {
	case messageTypeStatus:
		p.consumeStatus(line.Text)
	case messageTypeSummary:
		p.consumeSummary(line.Text)
	}
}

func (p *StatusParser) consumeStatus(text string) {
	var msg statusMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return
	}

	snap := types.ProgressSnapshot{
		Percent:        clampUnit(msg.PercentDone),
		TotalFiles:     msg.TotalFiles,
		FilesDone:      msg.FilesDone,
		TotalBytes:     msg.TotalBytes,
		BytesDone:      msg.BytesDone,
		SecondsElapsed: msg.SecondsElapsed,
	}
	if len(msg.CurrentFiles) > 0 {
		snap.CurrentFile = msg.CurrentFiles[0]
	}
	p.broadcaster.Publish(snap)
}

func (p *StatusParser) consumeSummary(text string) {
	var msg SummaryMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return
	}

	p.mu.Lock()
	p.summary = &msg
	p.final = true
	p.mu.Unlock()

	p.broadcaster.Publish(types.ProgressSnapshot{
		Percent:        1.0,
		TotalFiles:     msg.TotalFilesProcessed,
		FilesDone:      msg.TotalFilesProcessed,
		TotalBytes:     msg.TotalBytesProcessed,
		BytesDone:      msg.TotalBytesProcessed,
		SecondsElapsed: msg.TotalDuration,
		Final:          true,
	})
}

// Summary returns the terminal summary message, if one was seen.
func (p *StatusParser) Summary() (*SummaryMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summary == nil {
		return nil, false
	}
	copied := *p.summary
	return &copied, p.final
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
