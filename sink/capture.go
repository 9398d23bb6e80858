package sink

import (
	"strings"
	"sync"

	"github.com/justapithecus/drover/types"
)

// Capture retains every routed line, keyed by stream origin. It backs the
// final ProcessResult and is therefore never truncated: display surfaces
// bound their own retention, the capture does not.
//
// Newline-terminated lines are stored with their terminator restored so the
// captured text is byte-identical to what the child wrote (after UTF-8
// sanitization). A trailing partial line is stored without a terminator.
type Capture struct {
	mu    sync.Mutex
	bufs  map[types.StreamOrigin]*strings.Builder
	lines int64
}

// NewCapture returns an empty capture.
func NewCapture() *Capture {
	return &Capture{bufs: make(map[types.StreamOrigin]*strings.Builder, 2)}
}

// Consume appends the line to its origin's buffer.
func (c *Capture) Consume(line types.OutputLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, ok := c.bufs[line.Origin]
	if !ok {
		buf = &strings.Builder{}
		c.bufs[line.Origin] = buf
	}
	buf.WriteString(line.Text)
	if line.Terminated {
		buf.WriteByte('\n')
	}
	c.lines++
}

// Text returns everything captured for the given origin.
func (c *Capture) Text(origin types.StreamOrigin) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, ok := c.bufs[origin]
	if !ok {
		return ""
	}
	return buf.String()
}

// Lines returns the total line count across origins.
func (c *Capture) Lines() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

var _ LineSink = (*Capture)(nil)
