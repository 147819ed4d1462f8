package types

import (
	"errors"
	"fmt"
	"time"
)

// RunMeta is run identity metadata. Every log line and event carries it.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// Question is the natural-language question that started the run.
	Question string
	// Role is the access role the schema snapshot is filtered for.
	Role string
}

// Validate checks identity rules.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Question == "" {
		return errors.New("question must be non-empty")
	}
	return nil
}

// OutcomeStatus is the final status of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess - the run produced an answer.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeDegraded - the query succeeded but summarization failed; the
	// raw result stands in for the prose answer.
	OutcomeDegraded OutcomeStatus = "degraded"
	// OutcomeFailed - the run terminated without a result.
	OutcomeFailed OutcomeStatus = "failed"
)

// RunOutcome is the terminal record of a run. Every outcome reports elapsed
// time and the number of steps attempted, success or not.
type RunOutcome struct {
	Status OutcomeStatus `json:"status" msgpack:"status"`
	// Answer is the prose answer; empty on failure, and on degraded runs
	// when the summarizer produced nothing.
	Answer string `json:"answer,omitempty" msgpack:"answer,omitempty"`
	// Result is the structured query result, present on success and
	// degraded outcomes.
	Result *QueryResult `json:"result,omitempty" msgpack:"result,omitempty"`
	// Code is the failure code for failed outcomes.
	Code ErrorCode `json:"code,omitempty" msgpack:"code,omitempty"`
	// Message is the human-readable failure description.
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
	// Elapsed is the total run duration.
	Elapsed time.Duration `json:"elapsed_ms" msgpack:"elapsed_ms"`
	// Steps is the number of pipeline steps actually executed.
	// Self-correction adds one.
	Steps int `json:"steps" msgpack:"steps"`
}

// Failed reports whether the run terminated without a result.
func (o *RunOutcome) Failed() bool { return o.Status == OutcomeFailed }

func (o *RunOutcome) String() string {
	if o.Status == OutcomeFailed {
		return fmt.Sprintf("failed (%s): %s after %s, %d steps", o.Code, o.Message, o.Elapsed, o.Steps)
	}
	return fmt.Sprintf("%s after %s, %d steps", o.Status, o.Elapsed, o.Steps)
}
