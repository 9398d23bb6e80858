package sink

import (
	"sync"

	"github.com/justapithecus/drover/types"
)

// DefaultTailCapacity is the display retention window: enough scrollback to
// diagnose a failure without letting a chatty child grow memory unbounded.
const DefaultTailCapacity = 1000

// Tail keeps the most recent lines up to a fixed capacity, evicting the
// oldest line when full. A stalled or absent reader therefore costs bounded
// memory; the authoritative capture lives in Capture.
type Tail struct {
	mu       sync.Mutex
	capacity int
	lines    []types.OutputLine
	dropped  int64
}

// NewTail returns a tail with the given capacity.
// Non-positive capacities fall back to DefaultTailCapacity.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = DefaultTailCapacity
	}
	return &Tail{capacity: capacity, lines: make([]types.OutputLine, 0, capacity)}
}

// Consume appends the line, evicting the oldest retained line when the
// window is full.
func (t *Tail) Consume(line types.OutputLine) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.lines) == t.capacity {
		copy(t.lines, t.lines[1:])
		t.lines[len(t.lines)-1] = line
		t.dropped++
		return
	}
	t.lines = append(t.lines, line)
}

// Lines returns a copy of the retained window, oldest first.
func (t *Tail) Lines() []types.OutputLine {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.OutputLine, len(t.lines))
	copy(out, t.lines)
	return out
}

// Dropped reports how many lines have been evicted.
func (t *Tail) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Len reports the current window size.
func (t *Tail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

var _ LineSink = (*Tail)(nil)
