// Package types defines core domain types for the glean pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
)

// KeyRole describes a column's participation in table keys.
type KeyRole string

const (
	// KeyRoleNone marks a plain column.
	KeyRoleNone KeyRole = ""
	// KeyRolePrimary marks a primary key column.
	KeyRolePrimary KeyRole = "primary"
	// KeyRoleForeign marks a foreign key column.
	KeyRoleForeign KeyRole = "foreign"
)

// Column is one column of a table in a schema snapshot.
type Column struct {
	// Name is the column name as declared.
	Name string `json:"name" msgpack:"name"`
	// Type is the declared SQL type, engine spelling preserved.
	Type string `json:"type" msgpack:"type"`
	// Nullable reports whether the column accepts NULL.
	Nullable bool `json:"nullable" msgpack:"nullable"`
	// Key is the column's key role, if any.
	Key KeyRole `json:"key,omitempty" msgpack:"key,omitempty"`
}

// Table is one table in a schema snapshot. Column order matches the
// catalog's ordinal positions.
type Table struct {
	Name    string   `json:"name" msgpack:"name"`
	Columns []Column `json:"columns" msgpack:"columns"`
}

// SchemaSnapshot is a normalized, read-only description of the database
// structure at a point in time. A snapshot is immutable once produced and
// owned by the run that requested it; regenerate rather than mutate.
type SchemaSnapshot struct {
	Tables []Table `json:"tables" msgpack:"tables"`
}

// Table returns the named table, or nil if absent.
func (s *SchemaSnapshot) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Describe renders the snapshot as compact DDL-like text suitable for
// inclusion in a generation prompt.
func (s *SchemaSnapshot) Describe() string {
	var b strings.Builder
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "TABLE %s (\n", t.Name)
		for _, c := range t.Columns {
			b.WriteString("  " + c.Name + " " + c.Type)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			switch c.Key {
			case KeyRolePrimary:
				b.WriteString(" PRIMARY KEY")
			case KeyRoleForeign:
				b.WriteString(" REFERENCES")
			}
			b.WriteString("\n")
		}
		b.WriteString(")\n")
	}
	return b.String()
}
