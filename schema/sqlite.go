package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arbelos-io/glean/types"
)

// SQLite reads structure from sqlite_master and PRAGMA table_info over a
// database/sql handle (modernc.org/sqlite driver, registered by the caller).
type SQLite struct {
	DB *sql.DB
}

// NewSQLite creates a SQLite source over an existing handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

// Snapshot describes every user table in declaration order.
func (s *SQLite) Snapshot(ctx context.Context) (*types.SchemaSnapshot, error) {
	const tableQuery = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid`

	rows, err := s.DB.QueryContext(ctx, tableQuery)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	snap := &types.SchemaSnapshot{}
	for _, name := range names {
		table, err := s.describeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		snap.Tables = append(snap.Tables, *table)
	}
	return snap, nil
}

func (s *SQLite) describeTable(ctx context.Context, name string) (*types.Table, error) {
	// PRAGMA table_info emits one row per column in declaration order:
	// cid, name, type, notnull, dflt_value, pk.
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer rows.Close()

	table := &types.Table{Name: name}
	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		col := types.Column{
			Name:     colName,
			Type:     colType,
			Nullable: notNull == 0,
		}
		if pk > 0 {
			col.Key = types.KeyRolePrimary
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table_info rows: %w", err)
	}

	if err := s.markForeignKeys(ctx, name, table); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *SQLite) markForeignKeys(ctx context.Context, name string, table *types.Table) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", name))
	if err != nil {
		return fmt.Errorf("foreign_key_list %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		// id, seq, table, from, to, on_update, on_delete, match
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scan foreign_key_list row: %w", err)
		}
		for i := range table.Columns {
			if table.Columns[i].Name == from && table.Columns[i].Key == types.KeyRoleNone {
				table.Columns[i].Key = types.KeyRoleForeign
			}
		}
	}
	return rows.Err()
}

var _ Source = (*SQLite)(nil)
