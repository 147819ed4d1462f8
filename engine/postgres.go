package engine

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbelos-io/glean/types"
)

// Postgres executes statements through a pgx pool. A connection is
// acquired per call and released on every exit path; nothing is held
// between calls.
type Postgres struct {
	Pool *pgxpool.Pool
	cfg  Config
}

// NewPostgres wraps pool with the given bounds.
func NewPostgres(pool *pgxpool.Pool, cfg Config) *Postgres {
	return &Postgres{Pool: pool, cfg: cfg.withDefaults()}
}

// Query runs sql and returns at most RowCap normalized rows.
func (p *Postgres) Query(ctx context.Context, sql string) (*types.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()

	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classify(ctx, err)
		}
		return nil, types.NewRunError(types.CodeConnectionUnavailable, "could not acquire database connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &types.QueryResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) == p.cfg.RowCap {
			// One row past the cap proves truncation; stop reading.
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, classify(ctx, err)
		}
		result.Rows = append(result.Rows, normalizeRow(values))
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

var _ Engine = (*Postgres)(nil)
