// Package wire implements the framed protocol between a running engine and
// an embedding shell process. Frames are 4-byte big-endian length prefixes
// followed by a msgpack payload; the engine is the emitting side, the shell
// decodes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/drover/types"
)

const (
	// MaxFrameSize is the maximum frame size (16 MiB), length prefix included.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	ProgressFrameType = "progress"
	LineFrameType     = "line"
	ResultFrameType   = "result"
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the stream is unusable after this error.
// Partial and oversized frames poison the framing; decode errors do not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError reports whether err is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// ProgressFrame carries one progress snapshot to the shell.
type ProgressFrame struct {
	Type     string                 `msgpack:"type"`
	RunID    string                 `msgpack:"run_id"`
	Snapshot types.ProgressSnapshot `msgpack:"snapshot"`
}

// LineFrame carries one output line to the shell.
type LineFrame struct {
	Type   string `msgpack:"type"`
	RunID  string `msgpack:"run_id"`
	Origin string `msgpack:"origin"`
	Text   string `msgpack:"text"`
	Ts     int64  `msgpack:"ts"` // unix nanos
}

// ResultFrame is the terminal frame: exactly one per run, always last.
type ResultFrame struct {
	Type       string `msgpack:"type"`
	RunID      string `msgpack:"run_id"`
	Outcome    string `msgpack:"outcome"`
	ExitCode   int    `msgpack:"exit_code"`
	Message    string `msgpack:"message,omitempty"`
	DurationMs int64  `msgpack:"duration_ms"`
}

// Encoder writes frames to a stream. Writes are serialized so concurrent
// producers (progress goroutine, line sinks) interleave whole frames.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteProgress emits a progress frame.
func (e *Encoder) WriteProgress(runID string, snap types.ProgressSnapshot) error {
	return e.write(&ProgressFrame{
		Type:     ProgressFrameType,
		RunID:    runID,
		Snapshot: snap,
	})
}

// WriteLine emits a line frame.
func (e *Encoder) WriteLine(runID string, line types.OutputLine) error {
	return e.write(&LineFrame{
		Type:   LineFrameType,
		RunID:  runID,
		Origin: string(line.Origin),
		Text:   line.Text,
		Ts:     line.Time.UnixNano(),
	})
}

// WriteResult emits the terminal result frame.
func (e *Encoder) WriteResult(runID, outcome string, exitCode int, message string, duration time.Duration) error {
	return e.write(&ResultFrame{
		Type:       ResultFrameType,
		RunID:      runID,
		Outcome:    outcome,
		ExitCode:   exitCode,
		Message:    message,
		DurationMs: duration.Milliseconds(),
	})
}

func (e *Encoder) write(frame any) error {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(lengthBuf[:]); err != nil {
		return &FrameError{Kind: FrameErrorPartial, Msg: "failed to write length prefix", Err: err}
	}
	if _, err := e.w.Write(payload); err != nil {
		return &FrameError{Kind: FrameErrorPartial, Msg: "failed to write payload", Err: err}
	}
	return nil
}

// Decoder reads frames from a stream; the shell side of the protocol, kept
// here so both directions share one wire definition and for tests.
type Decoder struct {
	reader io.Reader
}

// NewDecoder creates a frame decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// ReadFrame reads one raw msgpack payload from the stream.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *Decoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// frameTypeProbe peeks at the type field without a full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into its typed frame, discriminating on the
// type field.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case ProgressFrameType:
		return decodeInto[ProgressFrame](payload, "progress frame")
	case LineFrameType:
		return decodeInto[LineFrame](payload, "line frame")
	case ResultFrameType:
		return decodeInto[ResultFrame](payload, "result frame")
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

func decodeInto[T any](payload []byte, what string) (*T, error) {
	var frame T
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode " + what,
			Err:  err,
		}
	}
	return &frame, nil
}
