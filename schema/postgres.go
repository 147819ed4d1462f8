package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbelos-io/glean/types"
)

// Postgres reads structure from information_schema over a pgx pool.
// Only catalog reads are issued; the pool may be shared with the executor.
type Postgres struct {
	Pool *pgxpool.Pool
	// Schema is the namespace to describe (default "public").
	Schema string
}

// NewPostgres creates a Postgres source over an existing pool.
func NewPostgres(pool *pgxpool.Pool, schemaName string) *Postgres {
	if schemaName == "" {
		schemaName = "public"
	}
	return &Postgres{Pool: pool, Schema: schemaName}
}

// Snapshot describes every base table in the configured namespace, columns
// in ordinal order, with nullability and primary/foreign key roles.
func (p *Postgres) Snapshot(ctx context.Context) (*types.SchemaSnapshot, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	const colQuery = `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := conn.Query(ctx, colQuery, p.Schema)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	snap := &types.SchemaSnapshot{}
	byTable := make(map[string]int)
	for rows.Next() {
		var tableName, colName, dataType string
		var nullable bool
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		idx, ok := byTable[tableName]
		if !ok {
			idx = len(snap.Tables)
			byTable[tableName] = idx
			snap.Tables = append(snap.Tables, types.Table{Name: tableName})
		}
		snap.Tables[idx].Columns = append(snap.Tables[idx].Columns, types.Column{
			Name:     colName,
			Type:     dataType,
			Nullable: nullable,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	if err := p.loadKeyRoles(ctx, conn, snap, byTable); err != nil {
		return nil, err
	}
	return snap, nil
}

// loadKeyRoles annotates primary and foreign key columns.
func (p *Postgres) loadKeyRoles(ctx context.Context, conn *pgxpool.Conn, snap *types.SchemaSnapshot, byTable map[string]int) error {
	const keyQuery = `
		SELECT kc.table_name, kc.column_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kc
		  ON tc.constraint_name = kc.constraint_name
		 AND tc.table_schema = kc.table_schema
		WHERE tc.table_schema = $1
		  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
		ORDER BY kc.table_name, kc.ordinal_position`

	rows, err := conn.Query(ctx, keyQuery, p.Schema)
	if err != nil {
		return fmt.Errorf("query key columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, constraintType string
		if err := rows.Scan(&tableName, &colName, &constraintType); err != nil {
			return fmt.Errorf("scan key row: %w", err)
		}
		idx, ok := byTable[tableName]
		if !ok {
			continue
		}
		cols := snap.Tables[idx].Columns
		for i := range cols {
			if cols[i].Name != colName {
				continue
			}
			// Primary wins when a column carries both roles.
			if constraintType == "PRIMARY KEY" {
				cols[i].Key = types.KeyRolePrimary
			} else if cols[i].Key == types.KeyRoleNone {
				cols[i].Key = types.KeyRoleForeign
			}
		}
	}
	return rows.Err()
}

var _ Source = (*Postgres)(nil)
