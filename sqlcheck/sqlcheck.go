// Package sqlcheck statically validates candidate SQL before it reaches a
// database. It enforces read-only, single-statement, bounded-size queries
// and injects a row limit when one is missing.
//
// The package is pure: validation never touches a database and holds no
// state, so a single Validator is safe for concurrent use across runs.
package sqlcheck

import (
	"fmt"
	"strings"
)

// Reason is a stable rejection reason code.
type Reason string

const (
	// ReasonMultipleStatements - more than one top-level statement.
	ReasonMultipleStatements Reason = "multiple_statements"
	// ReasonForbiddenOperation - the statement verb is not read-only.
	ReasonForbiddenOperation Reason = "forbidden_operation"
	// ReasonEmptyStatement - nothing left after stripping comments.
	ReasonEmptyStatement Reason = "empty_statement"
	// ReasonStatementTooLong - the raw text exceeds the length guard.
	ReasonStatementTooLong Reason = "statement_too_long"
)

// Rewrite records which row-bound rewrite was applied, for observability.
type Rewrite string

const (
	// RewriteNone - the statement already carried an acceptable limit.
	RewriteNone Rewrite = ""
	// RewriteLimitAppended - no limit clause was present; one was added.
	RewriteLimitAppended Rewrite = "limit_appended"
	// RewriteLimitLowered - a limit above the cap was lowered to the cap.
	RewriteLimitLowered Rewrite = "limit_lowered"
)

// Defaults for Config zero values.
const (
	DefaultRowCap    = 200
	DefaultMaxLength = 4096
)

// Config bounds the validator.
type Config struct {
	// RowCap is the row limit injected into statements (default 200).
	RowCap int
	// MaxLength is the maximum raw statement length in bytes.
	MaxLength int
}

func (c Config) withDefaults() Config {
	if c.RowCap <= 0 {
		c.RowCap = DefaultRowCap
	}
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	return c
}

// Validated is an accepted statement plus the rewrite applied to it.
// The SQL field is the canonical text to execute: comments stripped,
// whitespace trimmed, row limit enforced.
type Validated struct {
	SQL string
	// Verb is the detected leading verb, lowercased.
	Verb string
	// Rewrite records the applied row-bound rewrite, if any.
	Rewrite Rewrite
}

// Rejection is a typed validation failure.
type Rejection struct {
	Reason Reason
	// Verb is the offending verb for forbidden_operation rejections.
	Verb    string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// readVerbs are the accepted leading keywords. WITH is accepted only when
// the statement resolves to a read-only select, which checkBody enforces
// by scanning for mutating verbs at the top nesting level.
var readVerbs = map[string]bool{
	"select": true,
	"with":   true,
	"values": true,
}

// mutatingVerbs are rejected wherever they appear at the top nesting level
// outside string literals. The set errs toward rejection: verbs that only
// sometimes mutate (e.g. SET) are still refused. INTO is listed because a
// top-level SELECT ... INTO creates and populates a table.
var mutatingVerbs = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true,
	"replace": true, "upsert": true, "into": true,
	"create": true, "drop": true, "alter": true, "truncate": true,
	"rename": true, "reindex": true,
	"grant": true, "revoke": true,
	"exec": true, "execute": true, "call": true, "do": true,
	"set": true, "copy": true, "vacuum": true, "analyze": true,
	"attach": true, "detach": true, "pragma": true,
	"begin": true, "commit": true, "rollback": true, "savepoint": true,
}

// Validate applies the safety rules in order, short-circuiting on the first
// failure, and returns the canonical statement text on acceptance.
//
// Re-validating an accepted statement's SQL is a no-op: the row-bound
// rewrite is idempotent and never lowers an already-capped limit further.
func Validate(raw string, cfg Config) (*Validated, *Rejection) {
	cfg = cfg.withDefaults()

	// Comment splicing must not hide a verb from detection, so comments
	// are neutralized before any rule runs. The text is normalized under
	// both literal readings: escape-string literals (E'...') move where a
	// single-quoted literal ends, so a scan under only one reading can be
	// made to miss a separator or a verb the engine will see.
	plain := canonical(stripComments(raw, false))
	escaped := canonical(stripComments(raw, true))

	if plain == "" {
		return nil, &Rejection{
			Reason:  ReasonEmptyStatement,
			Message: "statement contains only comments or whitespace",
		}
	}

	if hasTopLevelSeparator(plain, false) || hasTopLevelSeparator(escaped, true) {
		return nil, &Rejection{
			Reason:  ReasonMultipleStatements,
			Message: "only one top-level statement is allowed",
		}
	}

	verb := leadingVerb(plain)
	if !readVerbs[verb] {
		return nil, &Rejection{
			Reason:  ReasonForbiddenOperation,
			Verb:    verb,
			Message: fmt.Sprintf("statement verb %s is not allowed", strings.ToUpper(verb)),
		}
	}
	bad := findTopLevelMutation(plain, false)
	if bad == "" {
		bad = findTopLevelMutation(escaped, true)
	}
	if bad != "" {
		return nil, &Rejection{
			Reason:  ReasonForbiddenOperation,
			Verb:    bad,
			Message: fmt.Sprintf("statement verb %s is not allowed", strings.ToUpper(bad)),
		}
	}

	sql, rewrite := enforceRowBound(plain, cfg.RowCap)

	// The length guard applies to the text that will execute, so it runs
	// after the row-bound rewrite.
	if len(sql) > cfg.MaxLength {
		return nil, &Rejection{
			Reason:  ReasonStatementTooLong,
			Message: fmt.Sprintf("statement length %d exceeds maximum %d", len(sql), cfg.MaxLength),
		}
	}

	return &Validated{SQL: sql, Verb: verb, Rewrite: rewrite}, nil
}

// canonical trims surrounding whitespace and a trailing separator.
func canonical(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "; \t\n\r")
	return strings.TrimSpace(s)
}

// leadingVerb returns the first word of the statement, lowercased.
// A leading parenthesis resolves to the verb inside it.
func leadingVerb(s string) string {
	s = strings.TrimLeft(s, "( \t\n\r")
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return strings.ToLower(s[:i])
		}
	}
	return strings.ToLower(s)
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
