package demographics

import (
	"context"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	fp := NewFingerprinter(DefaultPolicy())

	record := map[string]interface{}{
		"birth_month":     6,
		"birth_year":      1950,
		"gender_identity": "woman",
		"years_education": 16,
	}

	first := fp.Fingerprint(record)
	second := fp.Fingerprint(record)
	if first.Key != second.Key {
		t.Fatalf("same record produced different keys: %s vs %s", first.Key, second.Key)
	}
	if first.Key == "" {
		t.Fatal("expected non-empty key")
	}
}

func TestFingerprintNormalizesValues(t *testing.T) {
	fp := NewFingerprinter(DefaultPolicy())

	a := fp.Fingerprint(map[string]interface{}{
		"birth_month":     6,
		"birth_year":      1950,
		"gender_identity": "Woman ",
		"years_education": 16,
	})
	// JSON decoding yields float64 for numbers; the fingerprint must not
	// distinguish 1950 from 1950.0.
	b := fp.Fingerprint(map[string]interface{}{
		"birth_month":     float64(6),
		"birth_year":      float64(1950),
		"gender_identity": "woman",
		"years_education": float64(16),
	})
	if a.Key != b.Key {
		t.Fatalf("normalization failed: %s vs %s", a.Key, b.Key)
	}
}

func TestFingerprintDistinguishesRecords(t *testing.T) {
	fp := NewFingerprinter(DefaultPolicy())

	a := fp.Fingerprint(map[string]interface{}{
		"birth_month": 6, "birth_year": 1950, "gender_identity": "woman", "years_education": 16,
	})
	b := fp.Fingerprint(map[string]interface{}{
		"birth_month": 7, "birth_year": 1950, "gender_identity": "woman", "years_education": 16,
	})
	if a.Key == b.Key {
		t.Fatal("different records produced the same key")
	}
}

func TestFingerprintIgnoresUnlistedFields(t *testing.T) {
	fp := NewFingerprinter(DefaultPolicy())

	a := fp.Fingerprint(map[string]interface{}{
		"birth_month": 6, "birth_year": 1950, "gender_identity": "woman", "years_education": 16,
	})
	b := fp.Fingerprint(map[string]interface{}{
		"birth_month": 6, "birth_year": 1950, "gender_identity": "woman", "years_education": 16,
		"visit_date": "2024-01-01",
	})
	if a.Key != b.Key {
		t.Fatal("unlisted field changed the key")
	}
}

func TestMemoryStoreFindMatches(t *testing.T) {
	store := NewMemoryStore()
	fp := NewFingerprinter(DefaultPolicy())
	ctx := context.Background()

	shared := fp.Fingerprint(map[string]interface{}{
		"birth_month": 3, "birth_year": 1960, "gender_identity": "man", "years_education": 12,
	})
	other := fp.Fingerprint(map[string]interface{}{
		"birth_month": 4, "birth_year": 1961, "gender_identity": "man", "years_education": 12,
	})

	if err := store.Add(ctx, "NACC000001", shared); err != nil {
		t.Fatalf("failed to add: %v", err)
	}
	if err := store.Add(ctx, "NACC000002", other); err != nil {
		t.Fatalf("failed to add: %v", err)
	}

	matches, err := store.FindMatches(ctx, shared)
	if err != nil {
		t.Fatalf("failed to find matches: %v", err)
	}
	if len(matches) != 1 || matches[0] != "NACC000001" {
		t.Fatalf("expected [NACC000001], got %v", matches)
	}

	none, err := store.FindMatches(ctx, fp.Fingerprint(map[string]interface{}{
		"birth_month": 1, "birth_year": 1900, "gender_identity": "woman", "years_education": 8,
	}))
	if err != nil {
		t.Fatalf("failed to find matches: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %v", none)
	}
}

func TestNewFingerprinterTrimsFields(t *testing.T) {
	fp := NewFingerprinter(PolicyConfig{Fields: []string{" Birth_Year ", "", "gender_identity"}})
	a := fp.Fingerprint(map[string]interface{}{"birth_year": 1950, "gender_identity": "man"})
	b := fp.Fingerprint(map[string]interface{}{"birth_year": 1950, "gender_identity": "man", "extra": 1})
	if a.Key != b.Key {
		t.Fatal("expected identical keys")
	}
}
