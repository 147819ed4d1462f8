package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/arbelos-io/glean/types"
)

// Flusher is the subset of http.Flusher the SSE sink needs. Writers
// without flush support simply buffer.
type Flusher interface {
	Flush()
}

// SSESink renders envelopes as text/event-stream messages:
//
//	event: <type>
//	data: <json envelope>
//
// Each event is flushed immediately when the writer supports it, so
// subscribers observe progress in real time.
type SSESink struct {
	mu sync.Mutex
	w  io.Writer
	f  Flusher
}

// NewSSESink wraps w as an SSE event sink. The flusher is discovered
// from w when it implements Flusher.
func NewSSESink(w io.Writer) *SSESink {
	s := &SSESink{w: w}
	if f, ok := w.(Flusher); ok {
		s.f = f
	}
	return s
}

// Emit writes one SSE message.
func (s *SSESink) Emit(_ context.Context, event *types.EventEnvelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if s.f != nil {
		s.f.Flush()
	}
	return nil
}

// Close is a no-op; the response writer is owned by the HTTP server.
func (s *SSESink) Close() error { return nil }

var _ Sink = (*SSESink)(nil)
