package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/arbelos-io/glean/types"
)

// SQLite executes statements through a database/sql handle, typically the
// in-process sqlite driver. Used for local mode and tests.
type SQLite struct {
	DB  *sql.DB
	cfg Config
}

// NewSQLite wraps db with the given bounds.
func NewSQLite(db *sql.DB, cfg Config) *SQLite {
	return &SQLite{DB: db, cfg: cfg.withDefaults()}
}

// Query runs sql and returns at most RowCap normalized rows.
func (s *SQLite) Query(ctx context.Context, query string) (*types.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()

	conn, err := s.DB.Conn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classify(ctx, err)
		}
		return nil, types.NewRunError(types.CodeConnectionUnavailable, "could not acquire database connection", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(ctx, err)
	}

	result := &types.QueryResult{Columns: columns}
	scratch := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range scratch {
		ptrs[i] = &scratch[i]
	}

	for rows.Next() {
		if len(result.Rows) == s.cfg.RowCap {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(ctx, err)
		}
		result.Rows = append(result.Rows, normalizeRow(scratch))
	}
	if !result.Truncated {
		if err := rows.Err(); err != nil {
			return nil, classify(ctx, err)
		}
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	if result.Truncated {
		return result, types.NewRunError(types.CodeResultTooLarge, "result exceeded row cap and was truncated", nil)
	}
	return result, nil
}

var _ Engine = (*SQLite)(nil)
