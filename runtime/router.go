package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/sink"
	"github.com/justapithecus/drover/types"
)

// readBufferSize is the pipe read granularity. Lines routinely span reads and
// reads routinely carry many lines; neither case depends on this value.
const readBufferSize = 32 * 1024

// invalidUTF8Marker replaces invalid byte sequences during line sanitization.
// Replacement keeps a visible marker in captured output instead of silently
// dropping bytes.
const invalidUTF8Marker = "�"

// RouterStats is a point-in-time copy of a router's counters.
type RouterStats struct {
	// LinesRouted is the number of complete lines delivered to sinks.
	LinesRouted int64
	// BytesRead is the raw byte count consumed from the pipe.
	BytesRead int64
	// SinkPanics counts sink deliveries that panicked and were isolated.
	SinkPanics int64
}

// OutputRouter drains one child stream, reassembles raw chunks into lines,
// and fans each line out to its registered sinks in registration order.
//
// The read loop never blocks on a consumer: sinks receive synchronous calls
// and own their retention policy (Capture retains everything, Tail drops
// oldest). A sink that panics is isolated and logged; delivery continues to
// the remaining sinks and the read loop keeps draining.
type OutputRouter struct {
	origin types.StreamOrigin
	sinks  []sink.LineSink
	logger *log.Logger
	clock  func() time.Time

	mu    sync.Mutex
	stats RouterStats
}

// NewOutputRouter creates a router for the given stream origin. Sinks are
// invoked in the order given here.
func NewOutputRouter(origin types.StreamOrigin, logger *log.Logger, sinks ...sink.LineSink) *OutputRouter {
	return &OutputRouter{
		origin: origin,
		sinks:  sinks,
		logger: logger,
		clock:  time.Now,
	}
}

// Drain reads r until EOF, splitting the byte stream into lines and
// delivering each to the router's sinks. It handles lines spanning multiple
// reads, multi-line chunks in one read, and a trailing unterminated line
// (flushed as its own line at stream end). Invalid UTF-8 is replaced with
// U+FFFD markers, never dropped silently.
//
// Returns nil on EOF. A read error after the pipe is torn down by a kill is
// normal shutdown and also returns nil; ctx is only consulted between reads
// because a pipe read itself is unblocked by process termination.
func (r *OutputRouter) Drain(ctx context.Context, reader io.Reader) error {
	buf := make([]byte, readBufferSize)
	var partial []byte

	for {
		select {
		case <-ctx.Done():
			// Flush what we have so captured output stays faithful to
			// everything the child actually wrote before the kill.
			r.flushPartial(partial)
			return ctx.Err()
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.stats.BytesRead += int64(n)
			r.mu.Unlock()
			partial = r.splitAndDeliver(append(partial, buf[:n]...))
		}
		if err != nil {
			r.flushPartial(partial)
			if err == io.EOF {
				return nil
			}
			// Pipe teardown after a kill surfaces as "file already closed";
			// the stream is done either way.
			if strings.Contains(err.Error(), "file already closed") {
				return nil
			}
			return fmt.Errorf("%s read: %w", r.origin, err)
		}
	}
}

// splitAndDeliver delivers every complete line in data and returns the
// remaining partial tail (no trailing newline yet).
func (r *OutputRouter) splitAndDeliver(data []byte) []byte {
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return data
		}
		r.deliver(string(data[:idx]), true)
		data = data[idx+1:]
	}
}

// flushPartial emits a trailing unterminated line, if any.
func (r *OutputRouter) flushPartial(partial []byte) {
	if len(partial) == 0 {
		return
	}
	r.deliver(string(partial), false)
}

// deliver sanitizes one line and hands it to every sink in order. A panicking
// sink must not stop delivery to the others or abort the read loop.
func (r *OutputRouter) deliver(text string, terminated bool) {
	line := types.OutputLine{
		Origin:     r.origin,
		Text:       strings.ToValidUTF8(text, invalidUTF8Marker),
		Time:       r.clock(),
		Terminated: terminated,
	}

	r.mu.Lock()
	r.stats.LinesRouted++
	r.mu.Unlock()

	for _, s := range r.sinks {
		r.consumeIsolated(s, line)
	}
}

func (r *OutputRouter) consumeIsolated(s sink.LineSink, line types.OutputLine) {
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.stats.SinkPanics++
			r.mu.Unlock()
			r.logger.Warn("sink panicked, delivery continues", map[string]any{
				"origin": string(r.origin),
				"panic":  fmt.Sprintf("%v", p),
			})
		}
	}()
	s.Consume(line)
}

// Stats returns a copy of the router's counters.
func (r *OutputRouter) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
