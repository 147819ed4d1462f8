package sqlcheck

import (
	"strings"
	"testing"
)

func TestValidate_AcceptsPlainSelect(t *testing.T) {
	v, rej := Validate("SELECT COUNT(*) FROM customers", Config{})
	if rej != nil {
		t.Fatalf("rejected: %v", rej)
	}
	if v.SQL != "SELECT COUNT(*) FROM customers LIMIT 200" {
		t.Errorf("SQL = %q", v.SQL)
	}
	if v.Rewrite != RewriteLimitAppended {
		t.Errorf("Rewrite = %q, want %q", v.Rewrite, RewriteLimitAppended)
	}
	if v.Verb != "select" {
		t.Errorf("Verb = %q, want select", v.Verb)
	}
}

func TestValidate_ForbiddenVerbs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		verb string
	}{
		{"delete", "DELETE FROM customers", "delete"},
		{"insert", "INSERT INTO customers VALUES (1)", "insert"},
		{"update", "UPDATE customers SET name = 'x'", "update"},
		{"drop", "DROP TABLE customers", "drop"},
		{"alter", "ALTER TABLE customers ADD COLUMN x int", "alter"},
		{"truncate", "TRUNCATE customers", "truncate"},
		{"grant", "GRANT ALL ON customers TO bob", "grant"},
		{"call", "CALL cleanup()", "call"},
		{"pragma", "PRAGMA writable_schema = 1", "pragma"},
		{"lowercase", "delete from customers", "delete"},
		{"leading whitespace", "   \n\t drop table t", "drop"},
		{"with resolving to delete", "WITH doomed AS (SELECT id FROM t) DELETE FROM t WHERE id IN (SELECT id FROM doomed)", "delete"},
		{"select for update", "SELECT * FROM t FOR UPDATE", "update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rej := Validate(tt.sql, Config{})
			if rej == nil {
				t.Fatal("accepted a mutating statement")
			}
			if rej.Reason != ReasonForbiddenOperation {
				t.Errorf("Reason = %q, want %q", rej.Reason, ReasonForbiddenOperation)
			}
			if rej.Verb != tt.verb {
				t.Errorf("Verb = %q, want %q", rej.Verb, tt.verb)
			}
		})
	}
}

// A mutating verb hidden by comment splicing must still be caught: the
// comment is neutralized before verb detection.
func TestValidate_CommentObfuscation(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"line comment prefix", "-- harmless\nDELETE FROM customers"},
		{"block comment prefix", "/* harmless */ DELETE FROM customers"},
		{"comment splice in verb path", "/* a */DELETE/* b */ FROM customers"},
		{"nested block comment", "/* outer /* inner */ still comment */ DROP TABLE t"},
		{"comment between cte and verb", "WITH c AS (SELECT 1) /* x */ UPDATE t SET a = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rej := Validate(tt.sql, Config{})
			if rej == nil {
				t.Fatal("accepted an obfuscated mutating statement")
			}
			if rej.Reason != ReasonForbiddenOperation {
				t.Errorf("Reason = %q, want %q", rej.Reason, ReasonForbiddenOperation)
			}
		})
	}
}

// SELECT INTO is a single statement that creates and populates a table, so
// it must fail the verb rule even though it leads with SELECT.
func TestValidate_SelectIntoRejected(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"select into", "SELECT * INTO evil_copy FROM customers"},
		{"select into temp", "SELECT id INTO TEMP scratch FROM orders"},
		{"lowercase", "select name into backup from t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rej := Validate(tt.sql, Config{})
			if rej == nil {
				t.Fatal("accepted a table-creating select")
			}
			if rej.Reason != ReasonForbiddenOperation {
				t.Errorf("Reason = %q, want %q", rej.Reason, ReasonForbiddenOperation)
			}
			if rej.Verb != "into" {
				t.Errorf("Verb = %q, want into", rej.Verb)
			}
		})
	}
}

// Escape-string literals (E'...') move where a single-quoted literal ends:
// under the escape reading a backslash-quote pair stays inside the literal,
// so text that looks quoted under one reading is live SQL under the other.
// Scanning under both readings keeps the smuggled statement out.
func TestValidate_EscapeStringLiterals(t *testing.T) {
	t.Run("smuggled separator rejected", func(t *testing.T) {
		_, rej := Validate("SELECT E'\\''; DROP TABLE customers", Config{})
		if rej == nil {
			t.Fatal("accepted a smuggled second statement")
		}
		if rej.Reason != ReasonMultipleStatements {
			t.Errorf("Reason = %q, want %q", rej.Reason, ReasonMultipleStatements)
		}
	})

	t.Run("smuggled separator behind comment rejected", func(t *testing.T) {
		_, rej := Validate("SELECT E'\\'--'; DROP TABLE customers", Config{})
		if rej == nil || rej.Reason != ReasonMultipleStatements {
			t.Fatalf("rejection = %v, want %s", rej, ReasonMultipleStatements)
		}
	})

	t.Run("benign escape literal accepted", func(t *testing.T) {
		v, rej := Validate("SELECT E'line\\nbreak' FROM t", Config{})
		if rej != nil {
			t.Fatalf("rejected: %v", rej)
		}
		if !strings.Contains(v.SQL, "E'line\\nbreak'") {
			t.Errorf("literal content altered: %q", v.SQL)
		}
	})
}

func TestValidate_EmptyStatement(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t  "},
		{"only line comment", "-- nothing here"},
		{"only block comment", "/* nothing */"},
		{"comments and semicolon", "/* a */ ; -- b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rej := Validate(tt.sql, Config{})
			if rej == nil {
				t.Fatal("accepted an empty statement")
			}
			if rej.Reason != ReasonEmptyStatement {
				t.Errorf("Reason = %q, want %q", rej.Reason, ReasonEmptyStatement)
			}
		})
	}
}

func TestValidate_MultipleStatements(t *testing.T) {
	_, rej := Validate("SELECT 1; SELECT 2", Config{})
	if rej == nil || rej.Reason != ReasonMultipleStatements {
		t.Fatalf("rejection = %v, want %s", rej, ReasonMultipleStatements)
	}

	// Piggybacked mutation after a legitimate select.
	_, rej = Validate("SELECT * FROM t; DROP TABLE t", Config{})
	if rej == nil || rej.Reason != ReasonMultipleStatements {
		t.Fatalf("rejection = %v, want %s", rej, ReasonMultipleStatements)
	}
}

// The separator boundary case, exercised both ways: a semicolon inside a
// string literal is data, a semicolon outside one is a statement separator.
func TestValidate_SeparatorInStringLiteral(t *testing.T) {
	v, rej := Validate("SELECT * FROM t WHERE note = 'a; b'", Config{})
	if rej != nil {
		t.Fatalf("rejected a semicolon inside a string literal: %v", rej)
	}
	if !strings.Contains(v.SQL, "'a; b'") {
		t.Errorf("literal content altered: %q", v.SQL)
	}

	_, rej = Validate("SELECT * FROM t WHERE note = 'a'; DROP TABLE t", Config{})
	if rej == nil || rej.Reason != ReasonMultipleStatements {
		t.Fatalf("rejection = %v, want %s", rej, ReasonMultipleStatements)
	}
}

func TestValidate_TrailingSemicolonAllowed(t *testing.T) {
	v, rej := Validate("SELECT 1;", Config{})
	if rej != nil {
		t.Fatalf("rejected: %v", rej)
	}
	if strings.Contains(v.SQL, ";") {
		t.Errorf("trailing separator not trimmed: %q", v.SQL)
	}
}

func TestValidate_RowBound(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantSQL string
		rewrite Rewrite
	}{
		{
			"missing limit appended",
			"SELECT * FROM orders",
			"SELECT * FROM orders LIMIT 200",
			RewriteLimitAppended,
		},
		{
			"limit above cap lowered",
			"SELECT * FROM orders LIMIT 5000",
			"SELECT * FROM orders LIMIT 200",
			RewriteLimitLowered,
		},
		{
			"limit at cap untouched",
			"SELECT * FROM orders LIMIT 200",
			"SELECT * FROM orders LIMIT 200",
			RewriteNone,
		},
		{
			"limit below cap untouched",
			"SELECT * FROM orders LIMIT 5",
			"SELECT * FROM orders LIMIT 5",
			RewriteNone,
		},
		{
			"limit all lowered",
			"SELECT * FROM orders LIMIT ALL",
			"SELECT * FROM orders LIMIT 200",
			RewriteLimitLowered,
		},
		{
			"limit with offset",
			"SELECT * FROM orders LIMIT 1000 OFFSET 40",
			"SELECT * FROM orders LIMIT 200 OFFSET 40",
			RewriteLimitLowered,
		},
		{
			"limit inside subquery ignored",
			"SELECT * FROM (SELECT id FROM orders LIMIT 10) sub",
			"SELECT * FROM (SELECT id FROM orders LIMIT 10) sub LIMIT 200",
			RewriteLimitAppended,
		},
		{
			"limit spelled in string literal ignored",
			"SELECT * FROM t WHERE note = 'LIMIT 9999'",
			"SELECT * FROM t WHERE note = 'LIMIT 9999' LIMIT 200",
			RewriteLimitAppended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, rej := Validate(tt.sql, Config{})
			if rej != nil {
				t.Fatalf("rejected: %v", rej)
			}
			if v.SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", v.SQL, tt.wantSQL)
			}
			if v.Rewrite != tt.rewrite {
				t.Errorf("Rewrite = %q, want %q", v.Rewrite, tt.rewrite)
			}
		})
	}
}

// Re-validating an accepted statement must be a no-op: the cap is neither
// double-applied nor lowered further.
func TestValidate_RewriteIdempotent(t *testing.T) {
	inputs := []string{
		"SELECT * FROM orders",
		"SELECT * FROM orders LIMIT 5000",
		"SELECT name, total FROM orders ORDER BY total DESC",
	}
	for _, in := range inputs {
		first, rej := Validate(in, Config{})
		if rej != nil {
			t.Fatalf("rejected %q: %v", in, rej)
		}
		second, rej := Validate(first.SQL, Config{})
		if rej != nil {
			t.Fatalf("re-validation rejected %q: %v", first.SQL, rej)
		}
		if second.SQL != first.SQL {
			t.Errorf("re-validation changed %q to %q", first.SQL, second.SQL)
		}
		if second.Rewrite != RewriteNone {
			t.Errorf("re-validation applied rewrite %q", second.Rewrite)
		}
	}
}

func TestValidate_CustomCap(t *testing.T) {
	v, rej := Validate("SELECT * FROM t", Config{RowCap: 50})
	if rej != nil {
		t.Fatalf("rejected: %v", rej)
	}
	if v.SQL != "SELECT * FROM t LIMIT 50" {
		t.Errorf("SQL = %q", v.SQL)
	}
}

func TestValidate_StatementTooLong(t *testing.T) {
	long := "SELECT '" + strings.Repeat("x", 5000) + "'"
	_, rej := Validate(long, Config{})
	if rej == nil || rej.Reason != ReasonStatementTooLong {
		t.Fatalf("rejection = %v, want %s", rej, ReasonStatementTooLong)
	}

	if _, rej := Validate(long, Config{MaxLength: 10000}); rej != nil {
		t.Fatalf("rejected under a raised length guard: %v", rej)
	}
}

// The length guard bounds the text that will execute, so an appended limit
// clause counts against it.
func TestValidate_LengthGuardCountsRewrite(t *testing.T) {
	cfg := Config{MaxLength: 40}

	// 35 bytes raw, 45 after " LIMIT 200" is appended.
	over := "SELECT * FROM " + strings.Repeat("x", 21)
	_, rej := Validate(over, cfg)
	if rej == nil || rej.Reason != ReasonStatementTooLong {
		t.Fatalf("rejection = %v, want %s", rej, ReasonStatementTooLong)
	}

	// 30 bytes raw, exactly 40 after the rewrite.
	fits := "SELECT * FROM " + strings.Repeat("x", 16)
	v, rej := Validate(fits, cfg)
	if rej != nil {
		t.Fatalf("rejected: %v", rej)
	}
	if len(v.SQL) != 40 {
		t.Errorf("len(SQL) = %d, want 40", len(v.SQL))
	}
}

func TestValidate_CTEAccepted(t *testing.T) {
	sql := "WITH recent AS (SELECT * FROM orders WHERE ts > '2026-01-01') SELECT COUNT(*) FROM recent"
	v, rej := Validate(sql, Config{})
	if rej != nil {
		t.Fatalf("rejected a read-only CTE: %v", rej)
	}
	if v.Verb != "with" {
		t.Errorf("Verb = %q, want with", v.Verb)
	}
}

func TestStripComments_PreservesLiterals(t *testing.T) {
	in := "SELECT '--not a comment', \"/*ident*/\" FROM t -- real comment"
	out := stripComments(in, false)
	if !strings.Contains(out, "'--not a comment'") {
		t.Errorf("string literal altered: %q", out)
	}
	if !strings.Contains(out, "\"/*ident*/\"") {
		t.Errorf("quoted identifier altered: %q", out)
	}
	if strings.Contains(out, "real comment") {
		t.Errorf("line comment survived: %q", out)
	}
}
