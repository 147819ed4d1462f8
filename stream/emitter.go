package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arbelos-io/glean/types"
)

// ContractVersion is the semantic version of the progress event contract.
const ContractVersion = "1.0.0"

// ErrTerminated is returned when an event is emitted after the terminal
// event for the run.
var ErrTerminated = fmt.Errorf("stream: run already terminated")

// Emitter stamps and forwards progress events for one run.
//
// Sequence numbers start at 1 and increase by exactly 1 per event. After
// Done or Failed has been emitted every further emission fails with
// ErrTerminated, so a run can never produce two terminal events.
type Emitter struct {
	runID string
	sink  Sink

	mu         sync.Mutex
	seq        int64
	terminated bool

	// now is replaceable for timestamp tests.
	now func() time.Time
}

// NewEmitter creates an emitter for runID writing to sink.
func NewEmitter(runID string, sink Sink) *Emitter {
	return &Emitter{runID: runID, sink: sink, now: time.Now}
}

func (e *Emitter) emit(ctx context.Context, event *types.EventEnvelope) error {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return ErrTerminated
	}
	e.seq++
	event.ContractVersion = ContractVersion
	event.RunID = e.runID
	event.Seq = e.seq
	event.Ts = e.now().UTC().Format(time.RFC3339Nano)
	if event.Type.IsTerminal() {
		e.terminated = true
	}
	e.mu.Unlock()

	return e.sink.Emit(ctx, event)
}

// StepStarted announces that a pipeline step began.
func (e *Emitter) StepStarted(ctx context.Context, step types.StepName) error {
	return e.emit(ctx, &types.EventEnvelope{
		Type: types.EventTypeStepStarted,
		Step: &types.StepPayload{Name: step},
	})
}

// StepCompleted announces that a pipeline step finished.
func (e *Emitter) StepCompleted(ctx context.Context, step types.StepName, elapsed time.Duration, detail string) error {
	return e.emit(ctx, &types.EventEnvelope{
		Type: types.EventTypeStepCompleted,
		Step: &types.StepPayload{
			Name:      step,
			ElapsedMs: elapsed.Milliseconds(),
			Detail:    detail,
		},
	})
}

// AnswerChunk delivers one incremental answer fragment.
func (e *Emitter) AnswerChunk(ctx context.Context, content string) error {
	return e.emit(ctx, &types.EventEnvelope{
		Type:  types.EventTypeAnswerChunk,
		Chunk: &types.ChunkPayload{Content: content},
	})
}

// Done terminates the stream with the final answer.
func (e *Emitter) Done(ctx context.Context, payload *types.DonePayload) error {
	return e.emit(ctx, &types.EventEnvelope{
		Type: types.EventTypeDone,
		Done: payload,
	})
}

// Failed terminates the stream with a classified failure.
func (e *Emitter) Failed(ctx context.Context, payload *types.FailedPayload) error {
	return e.emit(ctx, &types.EventEnvelope{
		Type:   types.EventTypeFailed,
		Failed: payload,
	})
}

// Seq returns the sequence number of the last emitted event.
func (e *Emitter) Seq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Terminated reports whether a terminal event has been emitted.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}
