package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/arbelos-io/glean/adapter"
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

// Service capacity defaults.
const (
	DefaultMaxConcurrentRuns = 8
	// DefaultMaxRowCap is the hard ceiling for per-run row cap overrides.
	DefaultMaxRowCap = 1000
)

// ServiceConfig wires the long-lived pipeline dependencies.
type ServiceConfig struct {
	// Source produces schema snapshots. Required.
	Source schema.Source
	// Generator is the text-generation collaborator. Required.
	Generator gen.TextGenerator
	// Engine executes validated statements. Required.
	Engine engine.Engine
	// Masker enables PII masking when set.
	Masker *pii.Masker
	// Collector receives service metrics. Nil-safe.
	Collector *metrics.Collector
	// Adapters receive completion notifications on terminal outcomes.
	Adapters []adapter.Adapter
	// RoleRules narrows schema visibility per role. Zero value grants
	// every role the full snapshot.
	RoleRules schema.RoleRules
	// Validator bounds the safety validator.
	Validator sqlcheck.Config
	// MaxConcurrentRuns caps parallel runs; excess requests are rejected
	// immediately, never queued.
	MaxConcurrentRuns int
	// MaxRowCap is the hard ceiling for per-request row cap overrides.
	MaxRowCap int
	// RetryBackoff is the pause before single transient retries.
	RetryBackoff time.Duration
}

// AskRequest is one inbound question.
type AskRequest struct {
	// Question is the natural-language question. Required.
	Question string
	// Role selects the schema visibility rules for this run.
	Role string
	// RowCap optionally overrides the default row cap. Values above the
	// hard maximum are clamped, not rejected.
	RowCap int
}

// Service accepts questions and drives runs, enforcing the concurrent-run
// capacity gate. Safe for concurrent use.
type Service struct {
	config ServiceConfig
	gate   chan struct{}
	logger *log.Logger
}

// NewService validates the wiring and builds a service.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Source == nil || config.Generator == nil || config.Engine == nil {
		return nil, errors.New("service requires source, generator, and engine")
	}
	if config.MaxConcurrentRuns <= 0 {
		config.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if config.MaxRowCap <= 0 {
		config.MaxRowCap = DefaultMaxRowCap
	}

	return &Service{
		config: config,
		gate:   make(chan struct{}, config.MaxConcurrentRuns),
		logger: log.NewProcessLogger(),
	}, nil
}

// Ask answers a question synchronously. Progress events are discarded;
// the outcome carries the answer, elapsed time, and step count.
// Run failures are reported in the outcome, not as the error.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*types.RunOutcome, error) {
	return s.run(ctx, req, nopSink{})
}

// AskStream answers a question while emitting the ordered event stream
// into sink. The stream is terminated by exactly one done or failed
// event; the same outcome is also returned.
func (s *Service) AskStream(ctx context.Context, req AskRequest, sink stream.Sink) (*types.RunOutcome, error) {
	if sink == nil {
		return nil, errors.New("AskStream requires a sink")
	}
	return s.run(ctx, req, sink)
}

func (s *Service) run(ctx context.Context, req AskRequest, sink stream.Sink) (*types.RunOutcome, error) {
	if req.Question == "" {
		return nil, errors.New("question must be non-empty")
	}

	meta := &types.RunMeta{
		RunID:    uuid.NewString(),
		Question: req.Question,
		Role:     req.Role,
	}

	// Capacity gate: reject immediately when full, never queue.
	select {
	case s.gate <- struct{}{}:
	default:
		s.config.Collector.IncRunRejected()
		s.logger.Warn("run rejected at capacity gate", map[string]any{
			"run_id": meta.RunID,
			"limit":  s.config.MaxConcurrentRuns,
		})
		outcome := &types.RunOutcome{
			Status:  types.OutcomeFailed,
			Code:    types.CodeCapacityExceeded,
			Message: "concurrent run limit reached",
		}
		s.emitRejection(ctx, meta, sink, outcome)
		return outcome, nil
	}
	defer func() { <-s.gate }()

	orchestrator, err := NewRunOrchestrator(&RunConfig{
		RunMeta:      meta,
		Source:       s.sourceFor(req.Role),
		Generator:    s.config.Generator,
		Engine:       s.config.Engine,
		Sink:         sink,
		Masker:       s.config.Masker,
		Collector:    s.config.Collector,
		Validator:    s.validatorFor(req.RowCap),
		RetryBackoff: s.config.RetryBackoff,
	})
	if err != nil {
		return nil, err
	}

	result, err := orchestrator.Execute(ctx)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, meta, result)
	return result.Outcome, nil
}

// sourceFor applies role visibility rules when any are configured.
func (s *Service) sourceFor(role string) schema.Source {
	if len(s.config.RoleRules.Roles) == 0 && !s.config.RoleRules.DefaultAllow {
		return s.config.Source
	}
	return &schema.Filtered{
		Source: s.config.Source,
		Rules:  s.config.RoleRules,
		Role:   role,
	}
}

// validatorFor clamps a per-request row cap override to the hard
// maximum. Zero keeps the configured default.
func (s *Service) validatorFor(rowCap int) sqlcheck.Config {
	cfg := s.config.Validator
	if rowCap > 0 {
		if rowCap > s.config.MaxRowCap {
			rowCap = s.config.MaxRowCap
		}
		cfg.RowCap = rowCap
	}
	return cfg
}

// emitRejection delivers the failed event for a run the gate refused, so
// streaming subscribers still observe a terminated stream.
func (s *Service) emitRejection(ctx context.Context, meta *types.RunMeta, sink stream.Sink, outcome *types.RunOutcome) {
	emitter := stream.NewEmitter(meta.RunID, sink)
	if err := emitter.Failed(ctx, &types.FailedPayload{
		Code:    outcome.Code,
		Message: outcome.Message,
	}); err != nil {
		s.logger.Warn("rejection event delivery failed", map[string]any{
			"run_id": meta.RunID,
			"error":  err.Error(),
		})
	}
}

// notify publishes the terminal outcome to every configured adapter.
// Failures are logged; notification is best effort.
func (s *Service) notify(ctx context.Context, meta *types.RunMeta, result *RunResult) {
	if len(s.config.Adapters) == 0 {
		return
	}
	event := adapter.NewRunCompletedEvent(meta, result.Outcome, result.EventCount)
	for _, a := range s.config.Adapters {
		if err := a.Publish(context.WithoutCancel(ctx), event); err != nil {
			s.logger.Warn("completion notification failed", map[string]any{
				"run_id": meta.RunID,
				"error":  err.Error(),
			})
		}
	}
}

// nopSink discards events for the synchronous Ask path.
type nopSink struct{}

func (nopSink) Emit(context.Context, *types.EventEnvelope) error { return nil }
func (nopSink) Close() error                                     { return nil }
