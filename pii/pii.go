// Package pii masks personally identifying values before a question
// leaves the process and restores them in the final answer.
//
// Detected spans are replaced with deterministic tokens of the form
// [TYPE_XXXXXXXX], where the suffix is the first eight hex digits of the
// value's SHA-256. Token-to-value mappings live in a TokenStore with a
// bounded TTL; the generation collaborator only ever sees tokens.
package pii

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/arbelos-io/glean/types"
)

// EntityType labels a detected span.
type EntityType string

const (
	EntityPerson EntityType = "PERSON"
	EntityOrg    EntityType = "ORGANIZATION"
	EntityEmail  EntityType = "EMAIL_ADDRESS"
	EntityPhone  EntityType = "PHONE_NUMBER"
	EntityIDNum  EntityType = "ID_NUMBER"
)

// DefaultTTL bounds how long a token mapping stays resolvable.
const DefaultTTL = 86400 // seconds

type detector struct {
	entity EntityType
	re     *regexp.Regexp
}

// Pattern order matters only for overlap resolution; earlier entries win
// a tie at the same start offset.
var detectors = []detector{
	{EntityEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{EntityIDNum, regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
	{EntityPhone, regexp.MustCompile(`\+\d[\d\s-]{8,}\d`)},
	{EntityOrg, regexp.MustCompile(`\b[A-Z][A-Za-z&.'-]+(?:\s+[A-Z][A-Za-z&.'-]+)*\s+(?:Group|Ltd|Limited|LLC|Inc|Corp|Corporation|Company|Technologies|Solutions|Systems|Enterprises)\b`)},
	{EntityPerson, regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)},
}

// Span is one detected PII occurrence.
type Span struct {
	Entity EntityType
	Start  int
	End    int
}

// Detect returns non-overlapping PII spans in text, earliest first.
// When spans overlap, the one starting earlier wins; at equal starts the
// higher-priority detector wins.
func Detect(text string) []Span {
	var all []Span
	for _, d := range detectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			all = append(all, Span{Entity: d.entity, Start: loc[0], End: loc[1]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})

	out := all[:0]
	lastEnd := -1
	for _, s := range all {
		if s.Start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.End
	}
	return out
}

// Token derives the replacement token for a value.
func Token(value string, entity EntityType) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("[%s_%08X]", entity, sum[:4])
}

// tokenPattern matches tokens previously produced by Token.
var tokenPattern = regexp.MustCompile(`\[[A-Z_]+_[0-9A-F]{8}\]`)

// Mapping records one substitution made while encoding.
type Mapping struct {
	Token  string
	Entity EntityType
}

// Masker encodes and decodes text against a token store.
type Masker struct {
	Store TokenStore
	// TTLSeconds bounds mapping lifetime; DefaultTTL when zero.
	TTLSeconds int
}

func (m *Masker) ttl() int {
	if m.TTLSeconds > 0 {
		return m.TTLSeconds
	}
	return DefaultTTL
}

// EncodeText replaces detected PII with tokens and records the mappings.
// Replacement runs back to front so offsets stay valid.
func (m *Masker) EncodeText(ctx context.Context, text string) (string, []Mapping, error) {
	spans := Detect(text)
	if len(spans) == 0 {
		return text, nil, nil
	}

	encoded := text
	mappings := make([]Mapping, 0, len(spans))
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		value := text[s.Start:s.End]
		token := Token(value, s.Entity)
		if err := m.Store.Put(ctx, token, value, m.ttl()); err != nil {
			return "", nil, fmt.Errorf("store pii mapping: %w", err)
		}
		encoded = encoded[:s.Start] + token + encoded[s.End:]
		mappings = append(mappings, Mapping{Token: token, Entity: s.Entity})
	}
	// Mappings were appended back to front; restore text order.
	for i, j := 0, len(mappings)-1; i < j; i, j = i+1, j-1 {
		mappings[i], mappings[j] = mappings[j], mappings[i]
	}
	return encoded, mappings, nil
}

// DecodeText restores original values for every resolvable token in
// text. Unresolvable tokens are left in place.
func (m *Masker) DecodeText(ctx context.Context, text string) (string, error) {
	tokens := tokenPattern.FindAllString(text, -1)
	if len(tokens) == 0 {
		return text, nil
	}

	seen := make(map[string]bool, len(tokens))
	decoded := text
	for _, token := range tokens {
		if seen[token] {
			continue
		}
		seen[token] = true
		value, ok, err := m.Store.Get(ctx, token)
		if err != nil {
			return "", fmt.Errorf("resolve pii token: %w", err)
		}
		if !ok {
			continue
		}
		decoded = strings.ReplaceAll(decoded, token, value)
	}
	return decoded, nil
}

// DecodeResult restores tokens inside string cells of a result, in place.
func (m *Masker) DecodeResult(ctx context.Context, r *types.QueryResult) error {
	if r == nil {
		return nil
	}
	for _, row := range r.Rows {
		for i, v := range row {
			s, ok := v.(string)
			if !ok {
				continue
			}
			decoded, err := m.DecodeText(ctx, s)
			if err != nil {
				return err
			}
			row[i] = decoded
		}
	}
	return nil
}
