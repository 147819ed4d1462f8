package types

import (
	"fmt"
	"time"
)

// ValueKind is the portable scalar kind of a result cell.
// Engine-specific types are normalized to this closed set so results can
// be represented without leaking driver types.
type ValueKind string

const (
	KindNull    ValueKind = "null"
	KindText    ValueKind = "text"
	KindInteger ValueKind = "integer"
	KindReal    ValueKind = "real"
	KindBool    ValueKind = "boolean"
	// KindTime carries date/time values rendered as RFC 3339 text.
	KindTime ValueKind = "time"
)

// QueryResult is a bounded, normalized tabular result.
//
// Invariants:
//   - every row has exactly len(Columns) values
//   - RowCount == len(Rows) and never exceeds the executor's row cap
type QueryResult struct {
	// Columns are the result column names in select order.
	Columns []string `json:"columns" msgpack:"columns"`
	// Rows are the result rows, values aligned to Columns.
	Rows [][]any `json:"rows" msgpack:"rows"`
	// RowCount is len(Rows), carried explicitly for wire consumers.
	RowCount int `json:"row_count" msgpack:"row_count"`
	// Truncated reports that the executor discarded rows beyond its cap.
	Truncated bool `json:"truncated,omitempty" msgpack:"truncated,omitempty"`
	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"duration_ms" msgpack:"duration_ms"`
}

// Validate checks the result invariants.
func (r *QueryResult) Validate() error {
	if r.RowCount != len(r.Rows) {
		return fmt.Errorf("row_count %d does not match len(rows) %d", r.RowCount, len(r.Rows))
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}

// Empty reports whether the result has no rows.
func (r *QueryResult) Empty() bool { return len(r.Rows) == 0 }
