package types

import "time"

// StreamOrigin identifies which child stream a line arrived on.
type StreamOrigin string

const (
	OriginStdout StreamOrigin = "stdout"
	OriginStderr StreamOrigin = "stderr"
)

// OutputLine is one reassembled line of child output. Text excludes the
// newline terminator and has had invalid UTF-8 sequences replaced with
// U+FFFD markers.
type OutputLine struct {
	// Origin is the stream the line arrived on.
	Origin StreamOrigin `json:"origin" msgpack:"origin"`
	// Text is the line content without its terminator.
	Text string `json:"text" msgpack:"text"`
	// Time is when the line was reassembled.
	Time time.Time `json:"time" msgpack:"time"`
	// Terminated is false only for a trailing partial line flushed at EOF.
	Terminated bool `json:"terminated" msgpack:"terminated"`
}
