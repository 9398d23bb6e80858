package sink

import (
	"io"
	"sync"

	"github.com/justapithecus/drover/types"
)

// Writer forwards lines to an io.Writer, restoring the newline terminator.
// Used by the CLI to echo child output to the terminal as it arrives.
// Write errors are counted, not surfaced: a broken display stream must not
// disturb the run.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	errs   int64
	prefix string
}

// NewWriter returns a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewPrefixWriter returns a sink writing to w with prefix before each line.
func NewPrefixWriter(w io.Writer, prefix string) *Writer {
	return &Writer{w: w, prefix: prefix}
}

// Consume writes the line and a newline to the underlying writer.
func (s *Writer) Consume(line types.OutputLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, s.prefix+line.Text+"\n"); err != nil {
		s.errs++
	}
}

// Errors reports how many writes failed.
func (s *Writer) Errors() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

var _ LineSink = (*Writer)(nil)
