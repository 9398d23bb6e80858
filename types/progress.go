package types

// ProgressSnapshot is one point-in-time view of a running transfer,
// typically parsed from the backup tool's machine-readable status stream.
// Snapshots flow through a progress stream as values; consumers never share
// memory with the producer.
type ProgressSnapshot struct {
	// Percent is completion in [0, 1]. Within one operation consumers never
	// observe a regression; only a terminal aborted snapshot may reset it.
	Percent float64 `json:"percent" msgpack:"percent"`
	// TotalFiles is the number of files known to the operation so far.
	TotalFiles int64 `json:"total_files" msgpack:"total_files"`
	// FilesDone is the number of files already processed.
	FilesDone int64 `json:"files_done" msgpack:"files_done"`
	// TotalBytes is the total payload size known so far.
	TotalBytes int64 `json:"total_bytes" msgpack:"total_bytes"`
	// BytesDone is the payload already transferred.
	BytesDone int64 `json:"bytes_done" msgpack:"bytes_done"`
	// SecondsElapsed is the operation's own elapsed-time report.
	SecondsElapsed float64 `json:"seconds_elapsed" msgpack:"seconds_elapsed"`
	// CurrentFile is the file in flight, when the tool reports one.
	CurrentFile string `json:"current_file,omitempty" msgpack:"current_file,omitempty"`
	// Final marks the last snapshot of the operation.
	Final bool `json:"final" msgpack:"final"`
	// Aborted marks a terminal snapshot pushed because the run was
	// cancelled or timed out rather than finishing.
	Aborted bool `json:"aborted" msgpack:"aborted"`
}

// Terminal reports whether the snapshot closes its operation.
func (s ProgressSnapshot) Terminal() bool {
	return s.Final || s.Aborted
}
