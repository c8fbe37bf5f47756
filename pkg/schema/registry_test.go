package schema

import "testing"

func mustRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	return r
}

func TestNewRegistryLoadsCoreSchemas(t *testing.T) {
	r := mustRegistry(t)

	for _, urn := range []string{URNUser, URNGroup, URNServiceProviderConfig, URNEnterpriseUser} {
		if _, err := r.Get(urn); err != nil {
			t.Errorf("Get(%q): %v", urn, err)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := mustRegistry(t)

	if _, err := r.Get("urn:does:not:exist"); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}

func TestUserSchemaAttributeLookup(t *testing.T) {
	r := mustRegistry(t)

	userSchema, err := r.Get(URNUser)
	if err != nil {
		t.Fatalf("Get(URNUser): %v", err)
	}

	userName := userSchema.Attribute("userName")
	if userName == nil {
		t.Fatal("expected userName attribute")
	}

	if !userName.Required {
		t.Error("expected userName to be required")
	}

	if userName.Uniqueness != UniquenessServer {
		t.Errorf("expected server uniqueness, got %v", userName.Uniqueness)
	}

	// Case-insensitive lookup per RFC 7643 §2.1.
	if userSchema.Attribute("USERNAME") == nil {
		t.Error("expected case-insensitive attribute lookup")
	}

	emails := userSchema.Attribute("emails")
	if emails == nil || !emails.MultiValued {
		t.Fatal("expected multi-valued emails attribute")
	}

	emailType := emails.SubAttribute("type")
	if emailType == nil {
		t.Fatal("expected emails.type sub-attribute")
	}

	if len(emailType.CanonicalValues) != 3 {
		t.Errorf("expected 3 canonical values for emails.type, got %d", len(emailType.CanonicalValues))
	}
}

func TestAddOverridesExisting(t *testing.T) {
	r := mustRegistry(t)

	custom := &Schema{ID: URNGroup, Name: "Overridden"}
	r.Add(custom)

	got, err := r.Get(URNGroup)
	if err != nil {
		t.Fatalf("Get(URNGroup): %v", err)
	}

	if got.Name != "Overridden" {
		t.Errorf("expected overridden schema, got %q", got.Name)
	}
}
