package config

import (
	"testing"

	"github.com/scimware/scim-server/pkg/schema"
)

func newTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("schema.NewRegistry: %v", err)
	}

	return registry
}

func TestBuilderRequiresBaseURL(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewBuilder(registry).
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser}).
		Build()
	if err == nil {
		t.Fatalf("expected an error when no base URL is set")
	}
}

func TestBuilderRejectsUnsupportedScheme(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewBuilder(registry).
		BaseURL("ftp://scim.example.com").
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser}).
		Build()
	if err == nil {
		t.Fatalf("expected an error for an unsupported base URL scheme")
	}
}

func TestBuilderRequiresAtLeastOneResourceType(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewBuilder(registry).BaseURL("https://scim.example.com").Build()
	if err == nil {
		t.Fatalf("expected an error when no resource types are registered")
	}
}

func TestBuilderRejectsUnknownSchema(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewBuilder(registry).
		BaseURL("https://scim.example.com").
		ResourceType(ResourceTypeConfig{Name: "Widget", Plural: "Widgets", SchemaURN: "urn:example:widget"}).
		Build()
	if err == nil {
		t.Fatalf("expected an error for a resource type referencing an unregistered schema")
	}
}

func TestBuilderBuildsResourceTypes(t *testing.T) {
	registry := newTestRegistry(t)

	cfg, err := NewBuilder(registry).
		BaseURL("https://scim.example.com").
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser, Extensions: []string{schema.URNEnterpriseUser}}).
		ResourceType(ResourceTypeConfig{Name: "Group", Plural: "Groups", SchemaURN: schema.URNGroup}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	resourceTypes, err := cfg.ResourceTypes()
	if err != nil {
		t.Fatalf("ResourceTypes: %v", err)
	}

	if len(resourceTypes) != 2 {
		t.Fatalf("expected 2 resource types, got %d", len(resourceTypes))
	}

	if len(resourceTypes[0].Extensions) != 1 {
		t.Fatalf("expected the User resource type to carry its enterprise extension")
	}

	if cfg.DefaultTenantConfig == nil {
		t.Fatalf("expected a default tenant config to be synthesized")
	}
}

func TestBuilderRejectsDuplicateResourceType(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := NewBuilder(registry).
		BaseURL("https://scim.example.com").
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser}).
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser}).
		Build()
	if err == nil {
		t.Fatalf("expected an error for a duplicate resource type name")
	}
}

func TestGlobalConfigureLockUnlock(t *testing.T) {
	registry := newTestRegistry(t)

	cfg, err := NewBuilder(registry).
		BaseURL("https://scim.example.com").
		ResourceType(ResourceTypeConfig{Name: "User", Plural: "Users", SchemaURN: schema.URNUser}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	Configure(cfg)

	Lock()
	defer Unlock()

	if Current().BaseURL != "https://scim.example.com" {
		t.Fatalf("unexpected current config: %+v", Current())
	}
}
