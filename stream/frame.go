package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arbelos-io/glean/types"
)

// Binary frame layout: 4-byte big-endian payload length, then a
// msgpack-encoded EventEnvelope.
const (
	// MaxFrameSize caps a whole frame including the length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxPayloadSize caps the msgpack payload.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// FrameErrorKind classifies frame decoding errors.
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

func (e *FrameError) Unwrap() error { return e.Err }

// IsFatal reports whether the stream is unrecoverable after this error.
// Partial and oversized frames leave the reader desynchronized.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError reports whether err is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.IsFatal()
	}
	return false
}

// FrameSink writes envelopes as length-prefixed msgpack frames.
type FrameSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameSink wraps w as a binary event sink.
func NewFrameSink(w io.Writer) *FrameSink {
	return &FrameSink{w: w}
}

// Emit encodes and writes one frame.
func (s *FrameSink) Emit(_ context.Context, event *types.EventEnvelope) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "encode envelope", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame prefix: %w", err)
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Close is a no-op; the underlying writer is owned by the caller.
func (s *FrameSink) Close() error { return nil }

// FrameDecoder reads length-prefixed envelopes from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a decoder over r.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadEvent reads and decodes one envelope.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
//   - *FrameError with Kind=FrameErrorDecode: malformed payload
func (d *FrameDecoder) ReadEvent() (*types.EventEnvelope, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "read length prefix", Err: err}
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
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "read payload", Err: err}
	}

	var envelope types.EventEnvelope
	if err := msgpack.Unmarshal(payload, &envelope); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "decode envelope", Err: err}
	}
	return &envelope, nil
}

var _ Sink = (*FrameSink)(nil)
