package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arbelos-io/glean/adapter"
	"github.com/arbelos-io/glean/engine"
	"github.com/arbelos-io/glean/gen"
	"github.com/arbelos-io/glean/metrics"
	"github.com/arbelos-io/glean/schema"
	"github.com/arbelos-io/glean/stream"
	"github.com/arbelos-io/glean/types"
)

func newTestService(t *testing.T, mutate func(*ServiceConfig)) (*Service, *engine.Stub) {
	t.Helper()
	e := engine.NewStub().Push(countRow(7), nil)
	cfg := ServiceConfig{
		Source:       testSource(),
		Generator:    &gen.Fake{SQL: []string{"SELECT COUNT(*) FROM customers"}, Answer: "Seven."},
		Engine:       e,
		RetryBackoff: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return s, e
}

func TestService_Ask(t *testing.T) {
	s, _ := newTestService(t, nil)

	outcome, err := s.Ask(context.Background(), AskRequest{Question: "how many customers?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if outcome.Status != types.OutcomeSuccess || outcome.Answer != "Seven." {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.Steps != 4 {
		t.Errorf("steps = %d, want 4", outcome.Steps)
	}
}

func TestService_EmptyQuestion(t *testing.T) {
	s, _ := newTestService(t, nil)
	if _, err := s.Ask(context.Background(), AskRequest{}); err == nil {
		t.Error("empty question accepted")
	}
}

func TestService_AskStream(t *testing.T) {
	s, _ := newTestService(t, nil)
	sink := stream.NewStubSink()

	outcome, err := s.AskStream(context.Background(), AskRequest{Question: "how many?"}, sink)
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("outcome = %+v", outcome)
	}
	assertEventStream(t, sink.Events(), types.EventTypeDone)
}

// blockingGenerator parks every GenerateSQL call until released.
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGenerator) GenerateSQL(ctx context.Context, _ gen.SQLRequest) (string, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return "SELECT COUNT(*) FROM customers", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingGenerator) Summarize(context.Context, gen.SummaryRequest) (string, error) {
	return "done", nil
}

func TestService_CapacityGate(t *testing.T) {
	bg := &blockingGenerator{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	collector := metrics.NewCollector("stub", "fake")
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Generator = bg
		cfg.MaxConcurrentRuns = 1
		cfg.Collector = collector
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Ask(context.Background(), AskRequest{Question: "first"})
	}()
	<-bg.entered // first run holds the only slot

	outcome, err := s.Ask(context.Background(), AskRequest{Question: "second"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if outcome.Code != types.CodeCapacityExceeded {
		t.Errorf("code = %v, want capacity_exceeded", outcome.Code)
	}

	close(bg.release)
	wg.Wait()

	if collector.Snapshot().RunsRejected != 1 {
		t.Errorf("RunsRejected = %d", collector.Snapshot().RunsRejected)
	}
}

func TestService_CapacityRejectionTerminatesStream(t *testing.T) {
	bg := &blockingGenerator{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Generator = bg
		cfg.MaxConcurrentRuns = 1
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Ask(context.Background(), AskRequest{Question: "first"})
	}()
	<-bg.entered

	sink := stream.NewStubSink()
	_, err := s.AskStream(context.Background(), AskRequest{Question: "second"}, sink)
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	events := sink.Events()
	if len(events) != 1 || events[0].Type != types.EventTypeFailed {
		t.Errorf("rejected stream events = %+v", events)
	}

	close(bg.release)
	wg.Wait()
}

func TestService_RowCapOverrideClamped(t *testing.T) {
	s, e := newTestService(t, func(cfg *ServiceConfig) {
		cfg.MaxRowCap = 500
	})

	if _, err := s.Ask(context.Background(), AskRequest{Question: "q", RowCap: 10000}); err != nil {
		t.Fatal(err)
	}
	queries := e.Queries()
	if len(queries) != 1 || !strings.HasSuffix(queries[0], "LIMIT 500") {
		t.Errorf("override not clamped: %v", queries)
	}
}

func TestService_RowCapOverrideWithinMax(t *testing.T) {
	s, e := newTestService(t, nil)

	if _, err := s.Ask(context.Background(), AskRequest{Question: "q", RowCap: 25}); err != nil {
		t.Fatal(err)
	}
	queries := e.Queries()
	if len(queries) != 1 || !strings.HasSuffix(queries[0], "LIMIT 25") {
		t.Errorf("override not applied: %v", queries)
	}
}

func TestService_RoleFilteredSchema(t *testing.T) {
	g := &gen.Fake{SQL: []string{"SELECT COUNT(*) FROM customers"}, Answer: "ok"}
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Generator = g
		cfg.RoleRules = schema.RoleRules{
			Roles: map[string]schema.RoleRule{
				"viewer": {Tables: []string{"customers"}, HiddenColumns: map[string][]string{"customers": {"name"}}},
			},
		}
	})

	if _, err := s.Ask(context.Background(), AskRequest{Question: "q", Role: "viewer"}); err != nil {
		t.Fatal(err)
	}

	snap := g.Requests[0].Schema
	if snap.Table("customers") == nil {
		t.Fatal("visible table missing from snapshot")
	}
	for _, c := range snap.Table("customers").Columns {
		if c.Name == "name" {
			t.Error("hidden column reached the generator")
		}
	}
}

func TestService_UnknownRoleFailsSchema(t *testing.T) {
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.RoleRules = schema.RoleRules{
			Roles: map[string]schema.RoleRule{"admin": {}},
		}
	})

	outcome, err := s.Ask(context.Background(), AskRequest{Question: "q", Role: "stranger"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Code != types.CodeSchemaUnavailable {
		t.Errorf("code = %v, want schema_unavailable", outcome.Code)
	}
}

// recordingAdapter captures published completion events.
type recordingAdapter struct {
	mu     sync.Mutex
	events []*adapter.RunCompletedEvent
}

func (r *recordingAdapter) Publish(_ context.Context, ev *adapter.RunCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingAdapter) Close() error { return nil }

func TestService_CompletionNotification(t *testing.T) {
	rec := &recordingAdapter{}
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Adapters = []adapter.Adapter{rec}
	})

	if _, err := s.Ask(context.Background(), AskRequest{Question: "q", Role: "admin"}); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 1 {
		t.Fatalf("published %d events, want 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.EventType != "run_completed" || ev.Outcome != "success" || ev.RunID == "" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Steps != 4 || ev.RowCount != 1 {
		t.Errorf("event accounting = %+v", ev)
	}
}

func TestService_ConcurrentRunsIsolated(t *testing.T) {
	s, _ := newTestService(t, func(cfg *ServiceConfig) {
		cfg.Engine = engine.NewStub().Push(countRow(7), nil)
		cfg.MaxConcurrentRuns = 8
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Ask(context.Background(), AskRequest{Question: "q"})
			if err != nil || outcome.Status != types.OutcomeSuccess {
				t.Errorf("concurrent run: outcome=%+v err=%v", outcome, err)
			}
		}()
	}
	wg.Wait()
}
