// Package metrics provides service-level metrics collection.
//
// The Collector accumulates counters across runs. It is a leaf package
// with no internal dependencies. All increment methods are nil-receiver
// safe so callers never need to guard against a missing collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsSucceeded int64
	RunsDegraded  int64
	RunsFailed    int64
	RunsRejected  int64 // capacity gate refusals

	// Failure breakdown by error code
	FailuresByCode map[string]int64

	// Validator
	StatementsValidated int64
	StatementsRejected  int64
	RejectionsByReason  map[string]int64
	LimitRewrites       int64

	// Generation collaborator
	GenerationCalls   int64
	GenerationRetries int64
	SelfCorrections   int64
	SummariesDegraded int64

	// Masking
	ValuesMasked int64

	// Dimensions (informational, set at construction)
	Engine string
	Model  string
}

// Collector accumulates counters across runs.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsSucceeded int64
	runsDegraded  int64
	runsFailed    int64
	runsRejected  int64

	failuresByCode map[string]int64

	statementsValidated int64
	statementsRejected  int64
	rejectionsByReason  map[string]int64
	limitRewrites       int64

	generationCalls   int64
	generationRetries int64
	selfCorrections   int64
	summariesDegraded int64

	valuesMasked int64

	engine string
	model  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(engine, model string) *Collector {
	return &Collector{
		engine:             engine,
		model:              model,
		failuresByCode:     make(map[string]int64),
		rejectionsByReason: make(map[string]int64),
	}
}

// IncRunStarted increments the runs-started counter.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsStarted++
}

// IncRunSucceeded increments the runs-succeeded counter.
func (c *Collector) IncRunSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsSucceeded++
}

// IncRunDegraded increments the degraded-run counter.
func (c *Collector) IncRunDegraded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsDegraded++
}

// IncRunFailed records a failed run under its error code.
func (c *Collector) IncRunFailed(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsFailed++
	c.failuresByCode[code]++
}

// IncRunRejected increments the capacity-gate refusal counter.
func (c *Collector) IncRunRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsRejected++
}

// IncStatementValidated increments the accepted-statement counter.
func (c *Collector) IncStatementValidated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statementsValidated++
}

// IncStatementRejected records a validator rejection under its reason.
func (c *Collector) IncStatementRejected(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statementsRejected++
	c.rejectionsByReason[reason]++
}

// IncLimitRewrite increments the row-bound rewrite counter.
func (c *Collector) IncLimitRewrite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limitRewrites++
}

// IncGenerationCall increments the collaborator-call counter.
func (c *Collector) IncGenerationCall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generationCalls++
}

// IncGenerationRetry increments the collaborator-retry counter.
func (c *Collector) IncGenerationRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generationRetries++
}

// IncSelfCorrection increments the self-correction counter.
func (c *Collector) IncSelfCorrection() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfCorrections++
}

// IncSummaryDegraded increments the degraded-summary counter.
func (c *Collector) IncSummaryDegraded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summariesDegraded++
}

// AddValuesMasked adds n to the masked-value counter.
func (c *Collector) AddValuesMasked(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valuesMasked += int64(n)
}

// Snapshot returns an immutable copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{
			FailuresByCode:     map[string]int64{},
			RejectionsByReason: map[string]int64{},
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := make(map[string]int64, len(c.failuresByCode))
	for k, v := range c.failuresByCode {
		failures[k] = v
	}
	rejections := make(map[string]int64, len(c.rejectionsByReason))
	for k, v := range c.rejectionsByReason {
		rejections[k] = v
	}

	return Snapshot{
		RunsStarted:         c.runsStarted,
		RunsSucceeded:       c.runsSucceeded,
		RunsDegraded:        c.runsDegraded,
		RunsFailed:          c.runsFailed,
		RunsRejected:        c.runsRejected,
		FailuresByCode:      failures,
		StatementsValidated: c.statementsValidated,
		StatementsRejected:  c.statementsRejected,
		RejectionsByReason:  rejections,
		LimitRewrites:       c.limitRewrites,
		GenerationCalls:     c.generationCalls,
		GenerationRetries:   c.generationRetries,
		SelfCorrections:     c.selfCorrections,
		SummariesDegraded:   c.summariesDegraded,
		ValuesMasked:        c.valuesMasked,
		Engine:              c.engine,
		Model:               c.model,
	}
}
