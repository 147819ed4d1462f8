package pii

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/arbelos-io/glean/types"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		entity EntityType
		match  string
	}{
		{"email", "contact alice@example.com today", EntityEmail, "alice@example.com"},
		{"phone", "call +1 415 555 0100 now", EntityPhone, "+1 415 555 0100"},
		{"person", "ask Priya Sharma about it", EntityPerson, "Priya Sharma"},
		{"org suffix", "works at Acme Technologies now", EntityOrg, "Acme Technologies"},
		{"id number", "id 1234 5678 9012 on file", EntityIDNum, "1234 5678 9012"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spans := Detect(tc.text)
			if len(spans) == 0 {
				t.Fatal("no spans detected")
			}
			found := false
			for _, s := range spans {
				if tc.text[s.Start:s.End] == tc.match && s.Entity == tc.entity {
					found = true
				}
			}
			if !found {
				t.Errorf("span %q (%s) not detected in %v", tc.match, tc.entity, spans)
			}
		})
	}
}

func TestDetect_NoPII(t *testing.T) {
	if spans := Detect("total revenue by region last quarter"); len(spans) != 0 {
		t.Errorf("spurious spans: %v", spans)
	}
}

func TestDetect_NonOverlapping(t *testing.T) {
	// "Acme Technologies" also matches the person pattern prefix; the
	// longer org span must win and the spans must not overlap.
	spans := Detect("email bob@acme.com about Acme Technologies")
	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].End {
			t.Fatalf("overlapping spans: %v", spans)
		}
	}
}

func TestToken_Format(t *testing.T) {
	token := Token("Priya Sharma", EntityPerson)
	if !regexp.MustCompile(`^\[PERSON_[0-9A-F]{8}\]$`).MatchString(token) {
		t.Errorf("token %q has wrong shape", token)
	}
	// Deterministic per value.
	if token != Token("Priya Sharma", EntityPerson) {
		t.Error("token is not deterministic")
	}
	if token == Token("Anil Kumar", EntityPerson) {
		t.Error("distinct values collide")
	}
}

func TestMasker_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := &Masker{Store: NewMemoryStore()}

	original := "show orders for Priya Sharma with email priya@example.com"
	encoded, mappings, err := m.EncodeText(ctx, original)
	if err != nil {
		t.Fatalf("EncodeText() error = %v", err)
	}
	if strings.Contains(encoded, "Priya Sharma") || strings.Contains(encoded, "priya@example.com") {
		t.Fatalf("PII survived encoding: %q", encoded)
	}
	if len(mappings) != 2 {
		t.Fatalf("got %d mappings, want 2: %v", len(mappings), mappings)
	}
	for _, mp := range mappings {
		if !strings.Contains(encoded, mp.Token) {
			t.Errorf("token %s missing from encoded text", mp.Token)
		}
	}

	decoded, err := m.DecodeText(ctx, encoded)
	if err != nil {
		t.Fatalf("DecodeText() error = %v", err)
	}
	if decoded != original {
		t.Errorf("round trip gave %q, want %q", decoded, original)
	}
}

func TestMasker_EncodeNoPII(t *testing.T) {
	m := &Masker{Store: NewMemoryStore()}
	text := "count of open tickets"
	encoded, mappings, err := m.EncodeText(context.Background(), text)
	if err != nil {
		t.Fatalf("EncodeText() error = %v", err)
	}
	if encoded != text || mappings != nil {
		t.Errorf("clean text changed: %q, mappings %v", encoded, mappings)
	}
}

func TestMasker_UnresolvableTokenLeftInPlace(t *testing.T) {
	m := &Masker{Store: NewMemoryStore()}
	text := "result for [PERSON_DEADBEEF] pending"
	decoded, err := m.DecodeText(context.Background(), text)
	if err != nil {
		t.Fatalf("DecodeText() error = %v", err)
	}
	if decoded != text {
		t.Errorf("unknown token altered: %q", decoded)
	}
}

func TestMasker_DecodeResult(t *testing.T) {
	ctx := context.Background()
	m := &Masker{Store: NewMemoryStore()}

	token := Token("Priya Sharma", EntityPerson)
	if err := m.Store.Put(ctx, token, "Priya Sharma", DefaultTTL); err != nil {
		t.Fatal(err)
	}

	result := &types.QueryResult{
		Columns:  []string{"customer", "total"},
		Rows:     [][]any{{"order for " + token, int64(42)}},
		RowCount: 1,
	}
	if err := m.DecodeResult(ctx, result); err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if got := result.Rows[0][0]; got != "order for Priya Sharma" {
		t.Errorf("cell = %q", got)
	}
	if got := result.Rows[0][1]; got != int64(42) {
		t.Errorf("non-string cell altered: %v", got)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	if err := s.Put(ctx, "[PERSON_AAAAAAAA]", "Priya Sharma", 60); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "[PERSON_AAAAAAAA]"); !ok {
		t.Fatal("fresh entry not resolvable")
	}

	now = now.Add(61 * time.Second)
	if _, ok, _ := s.Get(ctx, "[PERSON_AAAAAAAA]"); ok {
		t.Error("expired entry still resolvable")
	}
}
