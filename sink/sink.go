// Package sink provides consumers for reassembled child-output lines.
//
// A sink receives every line the output router delivers. Sinks differ in
// retention: Capture keeps everything for the final result, Tail keeps a
// bounded window for display surfaces, Writer forwards lines to streams,
// Func bridges to arbitrary callbacks.
//
// The router serializes Consume calls, but sinks are also read from other
// goroutines (a TUI polling Tail mid-run), so implementations guard their
// state with their own locks.
package sink

import "github.com/justapithecus/drover/types"

// LineSink consumes one reassembled output line at a time.
type LineSink interface {
	Consume(line types.OutputLine)
}

// Func adapts a plain function into a LineSink.
type Func struct {
	fn func(types.OutputLine)
}

// NewFunc wraps fn as a sink. fn runs on the router's delivery goroutine
// and should return quickly.
func NewFunc(fn func(types.OutputLine)) *Func {
	return &Func{fn: fn}
}

// Consume invokes the wrapped function.
func (f *Func) Consume(line types.OutputLine) {
	f.fn(line)
}

var _ LineSink = (*Func)(nil)
