package gen

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/arbelos-io/glean/types"
)

func TestClassifyErr(t *testing.T) {
	cases := []struct {
		name string
		code int
	}{
		{"rate limited", 429},
		{"server error", 500},
		{"bad gateway", 502},
		{"bad request", 400},
		{"permission denied", 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyErr(genai.APIError{Code: tc.code})
			code, ok := types.CodeOf(err)
			if !ok {
				t.Fatal("classified error carries no run code")
			}
			if code != types.CodeGenerationUnavailable {
				t.Errorf("code = %v, want generation_unavailable", code)
			}
		})
	}
}

func TestBuildSQLPrompt(t *testing.T) {
	snap := &types.SchemaSnapshot{Tables: []types.Table{
		{Name: "orders", Columns: []types.Column{
			{Name: "id", Type: "INTEGER", Key: types.KeyRolePrimary},
			{Name: "total", Type: "REAL"},
		}},
	}}

	t.Run("first attempt", func(t *testing.T) {
		p := buildSQLPrompt(SQLRequest{Question: "total revenue?", Schema: snap})
		for _, want := range []string{"orders", "total", "exactly one SELECT", "total revenue?"} {
			if !strings.Contains(p, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		if strings.Contains(p, "rejected") {
			t.Error("first-attempt prompt mentions a rejection")
		}
	})

	t.Run("self correction", func(t *testing.T) {
		p := buildSQLPrompt(SQLRequest{
			Question:       "total revenue?",
			Schema:         snap,
			PriorSQL:       "DELETE FROM orders",
			PriorRejection: "forbidden operation: delete",
		})
		if !strings.Contains(p, "DELETE FROM orders") {
			t.Error("prompt missing rejected statement")
		}
		if !strings.Contains(p, "forbidden operation: delete") {
			t.Error("prompt missing rejection reason")
		}
	})
}

func TestBuildSummaryPrompt(t *testing.T) {
	result := &types.QueryResult{
		Columns:   []string{"region", "revenue"},
		Rows:      [][]any{{"west", int64(1200)}, {"east", int64(800)}},
		RowCount:  2,
		Duration:  5 * time.Millisecond,
		Truncated: true,
	}
	p := buildSummaryPrompt(SummaryRequest{
		Question: "revenue by region",
		SQL:      "SELECT region, revenue FROM sales LIMIT 200",
		Result:   result,
	})
	for _, want := range []string{"region | revenue", "west | 1200", "(2 rows, truncated)", "row cap"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSummaryPrompt_EmptyResult(t *testing.T) {
	p := buildSummaryPrompt(SummaryRequest{
		Question: "any rows?",
		SQL:      "SELECT id FROM t WHERE 0 LIMIT 200",
		Result:   &types.QueryResult{Columns: []string{"id"}},
	})
	if !strings.Contains(p, "no matching data") {
		t.Error("prompt does not instruct the empty-result phrasing")
	}
}

func TestWriteResult_ClipsLongCells(t *testing.T) {
	long := strings.Repeat("x", 500)
	var b strings.Builder
	writeResult(&b, &types.QueryResult{
		Columns:  []string{"blob"},
		Rows:     [][]any{{long}},
		RowCount: 1,
	})
	if strings.Contains(b.String(), long) {
		t.Error("oversized cell not clipped")
	}
	if !strings.Contains(b.String(), "...") {
		t.Error("clipped cell missing ellipsis")
	}
}
