package schema

import (
	"context"
	"fmt"

	"github.com/arbelos-io/glean/types"
)

// RoleRules describes which tables and columns a role may see.
// An absent role falls back to DefaultAllow.
type RoleRules struct {
	// DefaultAllow grants unlisted roles full visibility when true.
	DefaultAllow bool
	// Roles maps role name to its visibility rule.
	Roles map[string]RoleRule
}

// RoleRule is the visibility rule for one role.
type RoleRule struct {
	// Tables lists visible tables. Empty means all tables.
	Tables []string
	// HiddenColumns maps table name to columns withheld from this role.
	HiddenColumns map[string][]string
}

// Filtered wraps a Source, narrowing its snapshots to what a role may see.
// Generation is conditioned on the filtered snapshot, so statements against
// withheld tables simply have nothing to be generated from.
type Filtered struct {
	Source Source
	Rules  RoleRules
	Role   string
}

// Snapshot fetches the underlying snapshot and applies the role's rule.
func (f *Filtered) Snapshot(ctx context.Context) (*types.SchemaSnapshot, error) {
	snap, err := f.Source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	rule, ok := f.Rules.Roles[f.Role]
	if !ok {
		if f.Rules.DefaultAllow {
			return snap, nil
		}
		return nil, fmt.Errorf("role %q has no schema visibility", f.Role)
	}

	return applyRule(snap, rule), nil
}

func applyRule(snap *types.SchemaSnapshot, rule RoleRule) *types.SchemaSnapshot {
	visible := make(map[string]bool, len(rule.Tables))
	for _, t := range rule.Tables {
		visible[t] = true
	}

	out := &types.SchemaSnapshot{}
	for _, table := range snap.Tables {
		if len(rule.Tables) > 0 && !visible[table.Name] {
			continue
		}
		hidden := make(map[string]bool)
		for _, c := range rule.HiddenColumns[table.Name] {
			hidden[c] = true
		}
		kept := types.Table{Name: table.Name}
		for _, col := range table.Columns {
			if hidden[col.Name] {
				continue
			}
			kept.Columns = append(kept.Columns, col)
		}
		out.Tables = append(out.Tables, kept)
	}
	return out
}

var _ Source = (*Filtered)(nil)
