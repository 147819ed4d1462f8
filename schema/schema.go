// Package schema produces read-only snapshots of database structure.
//
// A Source reads catalog metadata and returns a normalized SchemaSnapshot.
// Sources never request write access; the snapshot is regenerated per run
// rather than cached across runs.
package schema

import (
	"context"

	"github.com/arbelos-io/glean/types"
)

// Source is the read-only metadata boundary consumed by the orchestrator.
type Source interface {
	// Snapshot reads catalog metadata and returns a normalized structural
	// description. The returned snapshot is owned by the caller.
	Snapshot(ctx context.Context) (*types.SchemaSnapshot, error)
}

// Static is a fixed-snapshot source for tests and demos.
type Static struct {
	Tables []types.Table
	// Err, when set, is returned instead of the snapshot.
	Err error
}

// Snapshot returns a copy of the fixed tables.
func (s *Static) Snapshot(_ context.Context) (*types.SchemaSnapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	tables := make([]types.Table, len(s.Tables))
	copy(tables, s.Tables)
	return &types.SchemaSnapshot{Tables: tables}, nil
}

var _ Source = (*Static)(nil)
