// Package runtime drives a question through the pipeline: schema
// snapshot, SQL generation, safety validation, bounded execution,
// summarization. Each run is an explicit state machine; every terminal
// outcome reports elapsed time and the number of steps executed.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbelos-io/glean/engine"
	"github.com/arbelos-io/glean/gen"
	"github.com/arbelos-io/glean/log"
	"github.com/arbelos-io/glean/metrics"
	"github.com/arbelos-io/glean/pii"
	"github.com/arbelos-io/glean/schema"
	"github.com/arbelos-io/glean/sqlcheck"
	"github.com/arbelos-io/glean/stream"
	"github.com/arbelos-io/glean/types"
)

// DefaultRetryBackoff is the pause before the single retry granted to
// transient generation and connection failures.
const DefaultRetryBackoff = 500 * time.Millisecond

// terminalEmitTimeout bounds delivery of the terminal event after the
// run context is already cancelled.
const terminalEmitTimeout = 5 * time.Second

// RunConfig configures a single run.
type RunConfig struct {
	// RunMeta is the run identity. Required.
	RunMeta *types.RunMeta
	// Source produces the schema snapshot. Required.
	Source schema.Source
	// Generator is the text-generation collaborator. Required.
	Generator gen.TextGenerator
	// Engine executes the validated statement. Required.
	Engine engine.Engine
	// Sink receives progress events. Required.
	Sink stream.Sink
	// Masker tokenizes sensitive values before the question reaches the
	// collaborator. Optional; nil disables masking.
	Masker *pii.Masker
	// Collector receives run metrics. Nil-safe.
	Collector *metrics.Collector
	// Validator bounds the safety validator for this run.
	Validator sqlcheck.Config
	// RetryBackoff is the pause before the single transient retry.
	RetryBackoff time.Duration
}

// RunResult is the terminal record of one orchestrated run.
type RunResult struct {
	// RunMeta is the run identity.
	RunMeta *types.RunMeta
	// Outcome is the terminal outcome.
	Outcome *types.RunOutcome
	// EventCount is the number of progress events emitted.
	EventCount int64
}

// RunOrchestrator drives a single run through the state machine.
type RunOrchestrator struct {
	config  *RunConfig
	logger  *log.Logger
	emitter *stream.Emitter
}

// NewRunOrchestrator creates an orchestrator for one run.
// Returns an error if the run metadata or wiring is invalid.
func NewRunOrchestrator(config *RunConfig) (*RunOrchestrator, error) {
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	if config.Source == nil || config.Generator == nil || config.Engine == nil || config.Sink == nil {
		return nil, errors.New("run config requires source, generator, engine, and sink")
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}

	return &RunOrchestrator{
		config:  config,
		logger:  log.NewLogger(config.RunMeta),
		emitter: stream.NewEmitter(config.RunMeta.RunID, config.Sink),
	}, nil
}

// Execute drives the run end-to-end. The returned error is non-nil only
// for orchestrator bugs; run failures are reported in the outcome.
//
// Execution flow:
//  1. Mask sensitive values in the question
//  2. Fetch the schema snapshot (failure terminal, no retry)
//  3. Generate a candidate statement (one retry on transient failure)
//  4. Validate it (one self-correction loop back to generation)
//  5. Execute it (one retry on connection_unavailable only)
//  6. Summarize the result (failure degrades, never fails the run)
func (r *RunOrchestrator) Execute(ctx context.Context) (*RunResult, error) {
	rc, runCtx := newRunContext(ctx, r.config.RunMeta)
	defer rc.Cancel()

	r.config.Collector.IncRunStarted()
	r.logger.Info("starting run", map[string]any{
		"question_len": len(rc.Question),
		"role":         r.config.RunMeta.Role,
	})

	r.maskQuestion(runCtx, rc)

	if result, err := r.fetchSchema(runCtx, rc); result != nil || err != nil {
		return result, err
	}
	if result, err := r.generateAndValidate(runCtx, rc); result != nil || err != nil {
		return result, err
	}
	if result, err := r.execute(runCtx, rc); result != nil || err != nil {
		return result, err
	}
	return r.summarize(runCtx, rc)
}

// maskQuestion tokenizes sensitive values in place. A masking failure is
// logged and the run proceeds unmasked rather than failing.
func (r *RunOrchestrator) maskQuestion(ctx context.Context, rc *RunContext) {
	if r.config.Masker == nil {
		return
	}
	encoded, mappings, err := r.config.Masker.EncodeText(ctx, rc.Question)
	if err != nil {
		r.logger.Warn("pii masking failed, proceeding unmasked", map[string]any{
			"error": err.Error(),
		})
		return
	}
	rc.Question = encoded
	rc.MaskedValues = len(mappings)
	r.config.Collector.AddValuesMasked(len(mappings))
}

func (r *RunOrchestrator) fetchSchema(ctx context.Context, rc *RunContext) (*RunResult, error) {
	if err := rc.advance(StateFetchingSchema); err != nil {
		return nil, err
	}
	stepStart := time.Now()
	if err := r.emitter.StepStarted(ctx, types.StepFetchingSchema); err != nil {
		return r.failEmit(ctx, rc, err)
	}

	snap, err := r.config.Source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return r.fail(ctx, rc, types.CodeCancelled, "run cancelled while fetching schema", err)
		}
		// Schema failure is terminal; there is nothing to correct.
		return r.fail(ctx, rc, types.CodeSchemaUnavailable, "schema snapshot unavailable", err)
	}

	rc.Snapshot = snap
	rc.Steps++
	if err := r.emitter.StepCompleted(ctx, types.StepFetchingSchema, time.Since(stepStart),
		fmt.Sprintf("%d tables", len(snap.Tables))); err != nil {
		return r.failEmit(ctx, rc, err)
	}
	return nil, nil
}

// generateAndValidate runs the generate/validate loop, allowing exactly
// one self-correction attempt after a validator rejection.
func (r *RunOrchestrator) generateAndValidate(ctx context.Context, rc *RunContext) (*RunResult, error) {
	var priorSQL, priorReason string
	selfCorrected := false

	for {
		if err := rc.advance(StateGeneratingSQL); err != nil {
			return nil, err
		}
		stepStart := time.Now()
		if err := r.emitter.StepStarted(ctx, types.StepGeneratingSQL); err != nil {
			return r.failEmit(ctx, rc, err)
		}

		candidate, err := r.generateWithRetry(ctx, rc, priorSQL, priorReason)
		if err != nil {
			if ctx.Err() != nil {
				return r.fail(ctx, rc, types.CodeCancelled, "run cancelled during generation", err)
			}
			return r.fail(ctx, rc, types.CodeGenerationUnavailable, "statement generation failed", err)
		}
		rc.Steps++
		if err := r.emitter.StepCompleted(ctx, types.StepGeneratingSQL, time.Since(stepStart), ""); err != nil {
			return r.failEmit(ctx, rc, err)
		}

		if err := rc.advance(StateValidating); err != nil {
			return nil, err
		}
		stepStart = time.Now()
		if err := r.emitter.StepStarted(ctx, types.StepValidating); err != nil {
			return r.failEmit(ctx, rc, err)
		}

		validated, rejection := sqlcheck.Validate(candidate, r.config.Validator)
		if rejection != nil {
			r.config.Collector.IncStatementRejected(string(rejection.Reason))
			r.logger.Warn("candidate rejected", map[string]any{
				"reason":         string(rejection.Reason),
				"self_corrected": selfCorrected,
			})
			if err := r.emitter.StepCompleted(ctx, types.StepValidating, time.Since(stepStart),
				"rejected: "+rejection.Message); err != nil {
				return r.failEmit(ctx, rc, err)
			}

			if selfCorrected {
				// The single correction attempt is spent.
				return r.fail(ctx, rc, types.CodeUnsafeStatement,
					fmt.Sprintf("statement rejected after self-correction: %s", rejection.Message), rejection)
			}
			selfCorrected = true
			r.config.Collector.IncSelfCorrection()
			priorSQL, priorReason = candidate, rejection.Message
			continue
		}

		r.config.Collector.IncStatementValidated()
		if validated.Rewrite != sqlcheck.RewriteNone {
			r.config.Collector.IncLimitRewrite()
		}
		rc.Validated = validated
		if err := r.emitter.StepCompleted(ctx, types.StepValidating, time.Since(stepStart),
			string(validated.Rewrite)); err != nil {
			return r.failEmit(ctx, rc, err)
		}
		return nil, nil
	}
}

// generateWithRetry asks the collaborator for a candidate, granting one
// retry with backoff on transient failures.
func (r *RunOrchestrator) generateWithRetry(ctx context.Context, rc *RunContext, priorSQL, priorReason string) (string, error) {
	req := gen.SQLRequest{
		Question:       rc.Question,
		Schema:         rc.Snapshot,
		PriorSQL:       priorSQL,
		PriorRejection: priorReason,
	}

	r.config.Collector.IncGenerationCall()
	candidate, err := r.config.Generator.GenerateSQL(ctx, req)
	if err == nil {
		return candidate, nil
	}
	if code, ok := types.CodeOf(err); !ok || !code.Retryable() || ctx.Err() != nil {
		return "", err
	}

	r.logger.Warn("generation failed, retrying once", map[string]any{"error": err.Error()})
	select {
	case <-ctx.Done():
		return "", err
	case <-time.After(r.config.RetryBackoff):
	}

	r.config.Collector.IncGenerationRetry()
	return r.config.Generator.GenerateSQL(ctx, req)
}

func (r *RunOrchestrator) execute(ctx context.Context, rc *RunContext) (*RunResult, error) {
	if err := rc.advance(StateExecuting); err != nil {
		return nil, err
	}
	stepStart := time.Now()
	if err := r.emitter.StepStarted(ctx, types.StepExecuting); err != nil {
		return r.failEmit(ctx, rc, err)
	}

	statement := rc.Validated.SQL
	if r.config.Masker != nil {
		// The collaborator saw tokens, so the statement may carry them.
		restored, err := r.config.Masker.DecodeText(ctx, statement)
		if err == nil {
			statement = restored
		} else {
			r.logger.Warn("token restoration failed, executing as generated", map[string]any{
				"error": err.Error(),
			})
		}
	}

	result, err := r.executeWithRetry(ctx, statement)
	if err != nil {
		code, ok := types.CodeOf(err)
		if !ok {
			code = types.CodeEngineRejected
		}
		if ctx.Err() != nil && code != types.CodeTimeout {
			code = types.CodeCancelled
		}
		return r.fail(ctx, rc, code, "statement execution failed", err)
	}

	rc.Result = result
	rc.Steps++
	if err := r.emitter.StepCompleted(ctx, types.StepExecuting, time.Since(stepStart),
		fmt.Sprintf("%d rows", result.RowCount)); err != nil {
		return r.failEmit(ctx, rc, err)
	}
	return nil, nil
}

// executeWithRetry grants one retry with backoff only when no connection
// could be acquired. Timeouts and engine rejections never retry.
func (r *RunOrchestrator) executeWithRetry(ctx context.Context, statement string) (*types.QueryResult, error) {
	result, err := r.config.Engine.Query(ctx, statement)
	if err == nil {
		return result, nil
	}
	if code, ok := types.CodeOf(err); !ok || code != types.CodeConnectionUnavailable || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("connection unavailable, retrying once", map[string]any{"error": err.Error()})
	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(r.config.RetryBackoff):
	}
	return r.config.Engine.Query(ctx, statement)
}

func (r *RunOrchestrator) summarize(ctx context.Context, rc *RunContext) (*RunResult, error) {
	if err := rc.advance(StateSummarizing); err != nil {
		return nil, err
	}
	stepStart := time.Now()
	if err := r.emitter.StepStarted(ctx, types.StepSummarizing); err != nil {
		return r.failEmit(ctx, rc, err)
	}

	answer, sumErr := r.summarizeResult(ctx, rc)
	if ctx.Err() != nil {
		// Cancellation before a terminal state always fails the run.
		return r.fail(ctx, rc, types.CodeCancelled, "run cancelled during summarization", ctx.Err())
	}

	degraded := false
	if sumErr != nil {
		// A failed summary degrades the run; the query itself succeeded.
		degraded = true
		answer = ""
		r.config.Collector.IncSummaryDegraded()
		r.logger.Warn("summarization failed, degrading", map[string]any{"error": sumErr.Error()})
	} else if r.config.Masker != nil {
		restored, err := r.config.Masker.DecodeText(ctx, answer)
		if err == nil {
			answer = restored
		}
		if err := r.config.Masker.DecodeResult(ctx, rc.Result); err != nil {
			r.logger.Warn("result token restoration failed", map[string]any{"error": err.Error()})
		}
	}

	rc.Answer = answer
	rc.Steps++
	if err := r.emitter.StepCompleted(ctx, types.StepSummarizing, time.Since(stepStart), ""); err != nil {
		return r.failEmit(ctx, rc, err)
	}

	if err := rc.advance(StateDone); err != nil {
		return nil, err
	}

	status := types.OutcomeSuccess
	if degraded {
		status = types.OutcomeDegraded
		r.config.Collector.IncRunDegraded()
	} else {
		r.config.Collector.IncRunSucceeded()
	}

	elapsed := rc.Elapsed()
	if err := r.emitter.Done(ctx, &types.DonePayload{
		Answer:    answer,
		Result:    rc.Result,
		Degraded:  degraded,
		ElapsedMs: elapsed.Milliseconds(),
		Steps:     rc.Steps,
		Masked:    rc.MaskedValues,
	}); err != nil {
		r.logger.Warn("terminal event delivery failed", map[string]any{"error": err.Error()})
	}

	r.logger.Info("run completed", map[string]any{
		"status":   string(status),
		"steps":    rc.Steps,
		"duration": elapsed.String(),
	})

	return r.buildResult(rc, &types.RunOutcome{
		Status:  status,
		Answer:  answer,
		Result:  rc.Result,
		Elapsed: elapsed,
		Steps:   rc.Steps,
	}), nil
}

// summarizeResult prefers the streaming call shape, forwarding each
// fragment as an answer_chunk event, and falls back to the blocking call.
func (r *RunOrchestrator) summarizeResult(ctx context.Context, rc *RunContext) (string, error) {
	req := gen.SummaryRequest{
		Question: rc.Question,
		SQL:      rc.Validated.SQL,
		Result:   rc.Result,
	}

	r.config.Collector.IncGenerationCall()
	if streamer, ok := r.config.Generator.(gen.StreamingSummarizer); ok {
		var full []byte
		err := streamer.SummarizeStream(ctx, req, func(chunk string) error {
			full = append(full, chunk...)
			return r.emitter.AnswerChunk(ctx, chunk)
		})
		if err != nil {
			return "", err
		}
		if len(full) == 0 {
			return "", errors.New("collaborator streamed an empty answer")
		}
		return string(full), nil
	}
	return r.config.Generator.Summarize(ctx, req)
}

// fail terminates the run with a classified failure.
func (r *RunOrchestrator) fail(ctx context.Context, rc *RunContext, code types.ErrorCode, message string, cause error) (*RunResult, error) {
	if err := rc.advance(StateFailed); err != nil {
		return nil, err
	}

	r.config.Collector.IncRunFailed(string(code))
	elapsed := rc.Elapsed()
	fields := map[string]any{
		"code":     string(code),
		"steps":    rc.Steps,
		"duration": elapsed.String(),
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	r.logger.Error("run failed", fields)

	// Deliver the terminal event even when the run context is already
	// cancelled; the subscriber may still be listening.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalEmitTimeout)
	defer cancel()
	if err := r.emitter.Failed(emitCtx, &types.FailedPayload{
		Code:      code,
		Message:   message,
		ElapsedMs: elapsed.Milliseconds(),
		Steps:     rc.Steps,
	}); err != nil {
		r.logger.Warn("terminal event delivery failed", map[string]any{"error": err.Error()})
	}

	outcome := &types.RunOutcome{
		Status:  types.OutcomeFailed,
		Code:    code,
		Message: message,
		Elapsed: elapsed,
		Steps:   rc.Steps,
	}
	return r.buildResult(rc, outcome), nil
}

// failEmit handles a sink that refuses a non-terminal event, which means
// the subscriber is gone. The run cancels and terminates as cancelled.
func (r *RunOrchestrator) failEmit(ctx context.Context, rc *RunContext, emitErr error) (*RunResult, error) {
	rc.Cancel()
	return r.fail(ctx, rc, types.CodeCancelled, "subscriber disconnected", emitErr)
}

func (r *RunOrchestrator) buildResult(rc *RunContext, outcome *types.RunOutcome) *RunResult {
	return &RunResult{
		RunMeta:    r.config.RunMeta,
		Outcome:    outcome,
		EventCount: r.emitter.Seq(),
	}
}
