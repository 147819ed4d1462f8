package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/arbelos-io/glean/sqlcheck"
	"github.com/arbelos-io/glean/types"
)

// RunContext carries the state of one end-to-end run. It is created when
// a request arrives, mutated only by the orchestrator driving the run,
// and discarded once the run reaches a terminal state.
//
// RunContexts are never shared between runs; all fields are owned by the
// single goroutine executing the run.
type RunContext struct {
	// Meta is the run identity.
	Meta *types.RunMeta

	// Question is the question as submitted to the pipeline. When
	// masking is enabled this is the tokenized form; MaskedValues
	// counts the substitutions.
	Question     string
	MaskedValues int

	// State is the current position in the state machine.
	State State

	// Accumulated artifacts, filled as steps complete.
	Snapshot  *types.SchemaSnapshot
	Validated *sqlcheck.Validated
	Result    *types.QueryResult
	Answer    string

	// Steps counts completed pipeline steps. The four-step happy path
	// counts one each for schema, generation, execution, summarization;
	// a self-correction adds one extra generation step.
	Steps int

	// StartTime anchors elapsed-time reporting.
	StartTime time.Time

	// cancel fires the run's cancellation signal.
	cancel context.CancelFunc
}

// newRunContext creates a run context in StateIdle and derives the
// cancellable context every blocking call must use.
func newRunContext(ctx context.Context, meta *types.RunMeta) (*RunContext, context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	return &RunContext{
		Meta:      meta,
		Question:  meta.Question,
		State:     StateIdle,
		StartTime: time.Now(),
		cancel:    cancel,
	}, runCtx
}

// advance moves the state machine to next, enforcing the transition
// table. An illegal move is a bug in the orchestrator, not a run
// failure, so it is reported as a plain error for tests to catch.
func (rc *RunContext) advance(next State) error {
	if !CanTransition(rc.State, next) {
		return fmt.Errorf("illegal transition %s -> %s", rc.State, next)
	}
	rc.State = next
	return nil
}

// Cancel fires the run's cancellation signal. Safe to call from any
// goroutine; the orchestrator observes it at the next suspension point.
func (rc *RunContext) Cancel() {
	if rc.cancel != nil {
		rc.cancel()
	}
}

// Elapsed returns the wall-clock time since the run started.
func (rc *RunContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}
