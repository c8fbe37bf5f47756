package server

import "testing"

func TestParseFilterQuotedValue(t *testing.T) {
	attr, value, err := parseFilter(`userName eq "bjensen"`)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}

	if attr != "userName" || value != "bjensen" {
		t.Fatalf("unexpected parse result: attr=%q value=%q", attr, value)
	}
}

func TestParseFilterBareValue(t *testing.T) {
	attr, value, err := parseFilter(`active eq true`)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}

	if attr != "active" || value != "true" {
		t.Fatalf("unexpected parse result: attr=%q value=%q", attr, value)
	}
}

func TestParseFilterRejectsEmpty(t *testing.T) {
	if _, _, err := parseFilter(""); err == nil {
		t.Fatalf("expected an error for an empty filter")
	}
}

func TestParseFilterRejectsUnsupportedOperator(t *testing.T) {
	if _, _, err := parseFilter(`userName co "jensen"`); err == nil {
		t.Fatalf("expected an error for an unsupported operator")
	}
}

func TestParseFilterRejectsMissingOperator(t *testing.T) {
	if _, _, err := parseFilter(`userName`); err == nil {
		t.Fatalf("expected an error for a malformed filter")
	}
}
