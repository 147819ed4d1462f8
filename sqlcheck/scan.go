package sqlcheck

import (
	"strconv"
	"strings"
)

// stripComments replaces line (--) and block (/* */) comments with a single
// space. Block comments nest, matching PostgreSQL. Comment markers inside
// string literals or quoted identifiers are left untouched.
//
// backslashEscapes selects the escape-string reading of single-quoted
// literals (E'...', or plain literals under standard_conforming_strings=off),
// where a backslash escapes the following character. The two readings
// disagree on where literals end, so callers scan under both.
func stripComments(s string, backslashEscapes bool) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			depth := 1
			i += 2
			for i < len(s) && depth > 0 {
				switch {
				case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
					depth++
					i += 2
				case s[i] == '*' && i+1 < len(s) && s[i+1] == '/':
					depth--
					i += 2
				default:
					i++
				}
			}
			b.WriteByte(' ')
		case c == '\'' || c == '"':
			end := skipQuoted(s, i, backslashEscapes)
			b.WriteString(s[i:end])
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the index just past the quoted region starting at i.
// A doubled quote inside the region is an escape, not a terminator. When
// backslashEscapes is set, a backslash inside a single-quoted literal also
// escapes the next byte. Quoted identifiers never use backslash escapes.
func skipQuoted(s string, i int, backslashEscapes bool) int {
	quote := s[i]
	i++
	for i < len(s) {
		switch {
		case backslashEscapes && quote == '\'' && s[i] == '\\':
			i += 2
		case s[i] == quote:
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return i // unterminated literal runs to end of text
}

// hasTopLevelSeparator reports whether a statement separator appears outside
// string literals with anything other than whitespace after it. A separator
// spelled inside a string literal does not count.
func hasTopLevelSeparator(s string, backslashEscapes bool) bool {
	for i := 0; i < len(s); {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i, backslashEscapes)
		case ';':
			if strings.TrimSpace(s[i+1:]) != "" {
				return true
			}
			i++
		default:
			i++
		}
	}
	return false
}

// findTopLevelMutation scans word tokens at parenthesis depth zero, skipping
// string literals, and returns the first mutating verb found. This is what
// keeps a WITH statement honest: common table expressions live inside
// parentheses, so a trailing INSERT/UPDATE/DELETE surfaces at depth zero.
func findTopLevelMutation(s string, backslashEscapes bool) string {
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i, backslashEscapes)
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if depth == 0 {
				word := strings.ToLower(s[i:j])
				if mutatingVerbs[word] {
					return word
				}
			}
			i = j
		default:
			i++
		}
	}
	return ""
}

// enforceRowBound ensures the statement carries a LIMIT no greater than cap.
// Missing limit: append one. Limit above cap (or non-numeric, e.g.
// LIMIT ALL): lower to cap. Limit at or below cap: leave unchanged, which
// makes the rewrite idempotent.
func enforceRowBound(s string, rowCap int) (string, Rewrite) {
	pos, arg, argEnd := findTopLevelLimit(s)
	if pos < 0 {
		return s + " LIMIT " + strconv.Itoa(rowCap), RewriteLimitAppended
	}

	n, err := strconv.Atoi(arg)
	if err == nil && n <= rowCap {
		return s, RewriteNone
	}
	return s[:pos] + strconv.Itoa(rowCap) + s[argEnd:], RewriteLimitLowered
}

// findTopLevelLimit locates the argument of a depth-zero LIMIT clause.
// Returns the argument's start offset, its text, and its end offset, or
// (-1, "", -1) when the statement has no top-level limit.
func findTopLevelLimit(s string) (int, string, int) {
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(s, i, false)
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if depth == 0 && strings.EqualFold(s[i:j], "limit") {
				k := j
				for k < len(s) && (s[k] == ' ' || s[k] == '\t' || s[k] == '\n' || s[k] == '\r') {
					k++
				}
				end := k
				for end < len(s) && isWordByte(s[end]) {
					end++
				}
				if end > k {
					return k, s[k:end], end
				}
			}
			i = j
		default:
			i++
		}
	}
	return -1, "", -1
}
