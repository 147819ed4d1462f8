// Package engine executes validated statements against a live database
// under hard resource bounds.
//
// An Engine runs exactly one statement per call, holds a connection only
// for the duration of that call, and enforces a wall-clock timeout and a
// row cap regardless of what the statement asks for. Failures surface as
// *types.RunError with a machine-readable code.
package engine

import (
	"context"
	"time"

	"github.com/arbelos-io/glean/types"
)

// Default bounds applied when a Config field is zero.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRowCap  = 200
)

// Engine runs one read statement and returns its rows.
type Engine interface {
	// Query executes sql and returns up to the configured row cap.
	// The statement must already have passed safety validation; the
	// engine re-enforces bounds but not verb policy.
	Query(ctx context.Context, sql string) (*types.QueryResult, error)
}

// Config bounds a single execution.
type Config struct {
	// Timeout is the wall-clock budget for one Query call.
	Timeout time.Duration
	// RowCap caps rows read from the database. Reads stop at RowCap+1
	// so truncation can be detected without draining the cursor.
	RowCap int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RowCap <= 0 {
		c.RowCap = DefaultRowCap
	}
	return c
}

// classify maps a driver error to a run error code. Context expiry wins
// over whatever the driver wrapped it in.
func classify(ctx context.Context, err error) *types.RunError {
	if ctx.Err() == context.DeadlineExceeded {
		return types.NewRunError(types.CodeTimeout, "statement exceeded execution budget", err)
	}
	if ctx.Err() == context.Canceled {
		return types.NewRunError(types.CodeCancelled, "execution cancelled", err)
	}
	return types.NewRunError(types.CodeEngineRejected, "database rejected statement", err)
}
