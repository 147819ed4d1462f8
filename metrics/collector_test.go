package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("sqlite", "gemini-2.0-flash")

	c.IncRunStarted()
	c.IncRunStarted()
	c.IncRunSucceeded()
	c.IncRunFailed("timeout")
	c.IncRunFailed("unsafe_statement")
	c.IncRunFailed("timeout")
	c.IncRunRejected()

	c.IncStatementValidated()
	c.IncStatementRejected("forbidden_operation")
	c.IncLimitRewrite()
	c.IncGenerationCall()
	c.IncGenerationRetry()
	c.IncSelfCorrection()
	c.IncSummaryDegraded()
	c.AddValuesMasked(3)

	s := c.Snapshot()
	if s.RunsStarted != 2 || s.RunsSucceeded != 1 || s.RunsFailed != 3 || s.RunsRejected != 1 {
		t.Errorf("run counters = %+v", s)
	}
	if s.FailuresByCode["timeout"] != 2 || s.FailuresByCode["unsafe_statement"] != 1 {
		t.Errorf("FailuresByCode = %v", s.FailuresByCode)
	}
	if s.RejectionsByReason["forbidden_operation"] != 1 {
		t.Errorf("RejectionsByReason = %v", s.RejectionsByReason)
	}
	if s.ValuesMasked != 3 {
		t.Errorf("ValuesMasked = %d", s.ValuesMasked)
	}
	if s.Engine != "sqlite" || s.Model != "gemini-2.0-flash" {
		t.Errorf("dimensions = %q %q", s.Engine, s.Model)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	// None of these may panic.
	c.IncRunStarted()
	c.IncRunSucceeded()
	c.IncRunDegraded()
	c.IncRunFailed("timeout")
	c.IncRunRejected()
	c.IncStatementValidated()
	c.IncStatementRejected("empty_statement")
	c.IncLimitRewrite()
	c.IncGenerationCall()
	c.IncGenerationRetry()
	c.IncSelfCorrection()
	c.IncSummaryDegraded()
	c.AddValuesMasked(1)

	s := c.Snapshot()
	if s.RunsStarted != 0 || s.FailuresByCode == nil {
		t.Errorf("nil snapshot = %+v", s)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("postgres", "gemini-2.0-flash")
	c.IncRunFailed("timeout")

	s := c.Snapshot()
	s.FailuresByCode["timeout"] = 99

	if got := c.Snapshot().FailuresByCode["timeout"]; got != 1 {
		t.Errorf("snapshot mutation leaked back: %d", got)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("sqlite", "gemini-2.0-flash")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.IncRunStarted()
				c.IncGenerationCall()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.RunsStarted != 1000 || s.GenerationCalls != 1000 {
		t.Errorf("concurrent counts = %d %d", s.RunsStarted, s.GenerationCalls)
	}
}
