package schema

import (
	"context"
	"testing"

	"github.com/arbelos-io/glean/types"
)

func testTables() []types.Table {
	return []types.Table{
		{Name: "customers", Columns: []types.Column{
			{Name: "id", Type: "INTEGER", Key: types.KeyRolePrimary},
			{Name: "name", Type: "TEXT"},
			{Name: "ssn", Type: "TEXT"},
		}},
		{Name: "orders", Columns: []types.Column{
			{Name: "id", Type: "INTEGER", Key: types.KeyRolePrimary},
			{Name: "total", Type: "REAL"},
		}},
		{Name: "audit_log", Columns: []types.Column{
			{Name: "id", Type: "INTEGER", Key: types.KeyRolePrimary},
		}},
	}
}

func TestFiltered_TableVisibility(t *testing.T) {
	f := &Filtered{
		Source: &Static{Tables: testTables()},
		Role:   "viewer",
		Rules: RoleRules{
			Roles: map[string]RoleRule{
				"viewer": {
					Tables:        []string{"customers", "orders"},
					HiddenColumns: map[string][]string{"customers": {"ssn"}},
				},
			},
		},
	}

	snap, err := f.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if len(snap.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(snap.Tables))
	}
	if snap.Table("audit_log") != nil {
		t.Error("audit_log visible to viewer")
	}
	customers := snap.Table("customers")
	for _, c := range customers.Columns {
		if c.Name == "ssn" {
			t.Error("hidden column ssn visible to viewer")
		}
	}
	if len(customers.Columns) != 2 {
		t.Errorf("customers has %d columns, want 2", len(customers.Columns))
	}
}

func TestFiltered_UnknownRole(t *testing.T) {
	base := &Static{Tables: testTables()}

	strict := &Filtered{Source: base, Role: "intern", Rules: RoleRules{}}
	if _, err := strict.Snapshot(context.Background()); err == nil {
		t.Error("unknown role granted visibility under strict rules")
	}

	open := &Filtered{Source: base, Role: "intern", Rules: RoleRules{DefaultAllow: true}}
	snap, err := open.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Tables) != 3 {
		t.Errorf("got %d tables, want all 3", len(snap.Tables))
	}
}

func TestFiltered_AdminSeesEverything(t *testing.T) {
	f := &Filtered{
		Source: &Static{Tables: testTables()},
		Role:   "admin",
		Rules: RoleRules{
			Roles: map[string]RoleRule{"admin": {}},
		},
	}
	snap, err := f.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Tables) != 3 {
		t.Errorf("got %d tables, want 3", len(snap.Tables))
	}
	if got := len(snap.Table("customers").Columns); got != 3 {
		t.Errorf("customers has %d columns, want 3", got)
	}
}
