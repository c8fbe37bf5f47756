package version

import (
	"encoding/json"
	"testing"
)

func mustCompute(t *testing.T, resource map[string]interface{}) Raw {
	t.Helper()

	v, err := Compute(resource)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	return v
}

func TestComputeStableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"userName": "alice", "active": true}
	b := map[string]interface{}{"active": true, "userName": "alice"}

	if mustCompute(t, a) != mustCompute(t, b) {
		t.Fatalf("expected key-order-independent versions to match")
	}
}

func TestComputeExcludesMetaVersion(t *testing.T) {
	a := map[string]interface{}{
		"userName": "alice",
		"meta":     map[string]interface{}{"version": "v1", "lastModified": "2020-01-01"},
	}
	b := map[string]interface{}{
		"userName": "alice",
		"meta":     map[string]interface{}{"version": "v2", "lastModified": "2020-01-01"},
	}

	if mustCompute(t, a) != mustCompute(t, b) {
		t.Fatalf("expected meta.version to be excluded from the hash input")
	}
}

func TestComputeChangesWithAttribute(t *testing.T) {
	a := map[string]interface{}{"userName": "alice"}
	b := map[string]interface{}{"userName": "bob"}

	if mustCompute(t, a) == mustCompute(t, b) {
		t.Fatalf("expected differing attributes to produce differing versions")
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	resource := map[string]interface{}{"b": 1, "a": []interface{}{1, 2, 3}}

	first, err := Canonicalize(resource)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	second, err := Canonicalize(decoded)
	if err != nil {
		t.Fatalf("Canonicalize (second pass): %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("canonical form not idempotent: %s != %s", first, second)
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	raw := Raw("abc123")

	parsed, err := ParseHTTP(EmitHTTP(raw))
	if err != nil {
		t.Fatalf("ParseHTTP: %v", err)
	}

	if !Equal(parsed, raw) {
		t.Fatalf("round trip mismatch: got %s, want %s", parsed, raw)
	}
}

func TestParseStrongAndWeakEqual(t *testing.T) {
	strong, err := ParseHTTP(`"abc123"`)
	if err != nil {
		t.Fatalf("ParseHTTP strong: %v", err)
	}

	weak, err := ParseHTTP(`W/"abc123"`)
	if err != nil {
		t.Fatalf("ParseHTTP weak: %v", err)
	}

	if !Equal(strong, weak) {
		t.Fatalf("expected strong and weak forms to compare equal")
	}
}

func TestParseHTTPRejectsMalformed(t *testing.T) {
	cases := []string{"", "abc123", `"`, `W/"abc123`, `""`}

	for _, c := range cases {
		if _, err := ParseHTTP(c); err == nil {
			t.Errorf("ParseHTTP(%q): expected error, got none", c)
		}
	}
}
