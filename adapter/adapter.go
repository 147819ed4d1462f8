// Package adapter defines the completion notification boundary.
//
// Adapters publish run completion notifications to downstream systems.
// The runtime owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/arbelos-io/glean/types"
)

// ContractVersion is the semantic version of the notification payload.
const ContractVersion = "1.0.0"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "run_completed"
	RunID           string `json:"run_id"`
	Role            string `json:"role,omitempty"`
	Outcome         string `json:"outcome"` // success, degraded, failed
	Code            string `json:"code,omitempty"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	Steps           int    `json:"steps"`
	RowCount        int    `json:"row_count"`
	EventCount      int64  `json:"event_count"`
	DurationMs      int64  `json:"duration_ms"`
}

// NewRunCompletedEvent builds the notification payload from a terminal
// outcome. The answer text itself is never published.
func NewRunCompletedEvent(meta *types.RunMeta, outcome *types.RunOutcome, eventCount int64) *RunCompletedEvent {
	ev := &RunCompletedEvent{
		ContractVersion: ContractVersion,
		EventType:       "run_completed",
		RunID:           meta.RunID,
		Role:            meta.Role,
		Outcome:         string(outcome.Status),
		Code:            string(outcome.Code),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Steps:           outcome.Steps,
		EventCount:      eventCount,
		DurationMs:      outcome.Elapsed.Milliseconds(),
	}
	if outcome.Result != nil {
		ev.RowCount = outcome.Result.RowCount
	}
	return ev
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for concurrent use across runs.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
