// Package stream delivers ordered progress events to subscribers.
//
// An Emitter stamps envelopes with a per-run monotonic sequence and
// forwards them to a Sink. Sinks may write to an HTTP response, a
// channel, or a binary frame stream; ordering within a run is the
// emitter's responsibility, delivery is the sink's.
package stream

import (
	"context"
	"sync"

	"github.com/arbelos-io/glean/types"
)

// Sink receives envelopes in emission order.
type Sink interface {
	// Emit delivers one envelope. Envelopes for a given run arrive in
	// strictly increasing Seq order.
	Emit(ctx context.Context, event *types.EventEnvelope) error

	// Close releases any resources held by the sink.
	Close() error
}

// ChannelSink forwards envelopes to a Go channel. The channel is closed
// by Close, never by Emit.
type ChannelSink struct {
	C chan *types.EventEnvelope

	mu     sync.Mutex
	closed bool
}

// NewChannelSink returns a sink backed by a channel with the given
// buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan *types.EventEnvelope, buffer)}
}

// Emit sends the envelope, blocking until the subscriber accepts it or
// ctx is cancelled.
func (s *ChannelSink) Emit(ctx context.Context, event *types.EventEnvelope) error {
	select {
	case s.C <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel. Safe to call more than once.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.C)
	}
	return nil
}

// StubSink accepts envelopes without delivering them anywhere. Tracks
// everything written for test assertions.
type StubSink struct {
	mu sync.Mutex

	// Written stores all emitted envelopes in order.
	Written []*types.EventEnvelope
	// Closed indicates whether Close was called.
	Closed bool
	// ErrorOnEmit, if non-nil, is returned by Emit.
	ErrorOnEmit error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{Written: make([]*types.EventEnvelope, 0)}
}

// Emit records the envelope without delivering it.
func (s *StubSink) Emit(_ context.Context, event *types.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrorOnEmit != nil {
		return s.ErrorOnEmit
	}
	s.Written = append(s.Written, event)
	return nil
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Events returns a snapshot of the written envelopes.
func (s *StubSink) Events() []*types.EventEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.EventEnvelope, len(s.Written))
	copy(out, s.Written)
	return out
}

var (
	_ Sink = (*ChannelSink)(nil)
	_ Sink = (*StubSink)(nil)
)
