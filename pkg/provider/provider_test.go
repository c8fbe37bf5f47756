package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/patch"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/storage/memory"
	"github.com/scimware/scim-server/pkg/tenant"
)

func newTestProvider(t *testing.T) (*Provider, *ResourceType) {
	t.Helper()

	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	userSchema, err := registry.Get(schema.URNUser)
	if err != nil {
		t.Fatalf("Get(URNUser): %v", err)
	}

	rt := &ResourceType{Name: "User", Plural: "Users", Schema: userSchema}

	p, err := NewProvider(Config{
		Storage:     memory.New(),
		Registry:    registry,
		BaseURL:     "https://example.com",
		ScimVersion: "v2",
	}, rt)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	return p, rt
}

func TestCreateThenGet(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.Status != StatusSuccess {
		t.Fatalf("expected success, got status %v", created.Status)
	}

	id, _ := created.Resource["id"].(string)
	if id == "" {
		t.Fatalf("expected a server-assigned id")
	}

	got, err := p.Get(ctx, rc, "User", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Status != StatusSuccess {
		t.Fatalf("expected success, got status %v", got.Status)
	}

	if got.Resource["userName"] != "bjensen" {
		t.Fatalf("unexpected userName: %v", got.Resource["userName"])
	}
}

func TestCreateRejectsMissingRequiredAttribute(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	if _, err := p.Create(ctx, rc, "User", map[string]interface{}{"displayName": "no username"}); err == nil {
		t.Fatalf("expected an error for a missing required attribute")
	}
}

func TestCreateRejectsDuplicateUserName(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	if _, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err == nil {
		t.Fatalf("expected a uniqueness conflict")
	}

	if !errors.IsConflictError(err) {
		t.Fatalf("expected a conflict error, got %T: %v", err, err)
	}
}

func TestConditionalUpdateDetectsVersionMismatch(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	stale := "not-the-current-version"

	update := map[string]interface{}{"userName": "bjensen", "displayName": "Babs Jensen"}

	result, err := p.Update(ctx, rc, "User", id, update, stale)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if result.Status != StatusVersionMismatch {
		t.Fatalf("expected a version mismatch, got %v", result.Status)
	}

	result, err = p.Update(ctx, rc, "User", id, update, created.CurrentVersion)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}

	if result.Resource["displayName"] != "Babs Jensen" {
		t.Fatalf("update did not apply: %v", result.Resource)
	}
}

func TestPatchAddAndRemove(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	addDoc := patch.Document{Operations: []patch.Operation{
		{Op: patch.OpAdd, Path: "displayName", Value: "Babs Jensen"},
	}}

	result, err := p.Patch(ctx, rc, "User", id, addDoc, "")
	if err != nil {
		t.Fatalf("Patch add: %v", err)
	}

	if result.Resource["displayName"] != "Babs Jensen" {
		t.Fatalf("add did not apply: %v", result.Resource)
	}

	removeDoc := patch.Document{Operations: []patch.Operation{
		{Op: patch.OpRemove, Path: "displayName"},
	}}

	result, err = p.Patch(ctx, rc, "User", id, removeDoc, "")
	if err != nil {
		t.Fatalf("Patch remove: %v", err)
	}

	if _, ok := result.Resource["displayName"]; ok {
		t.Fatalf("expected displayName to be removed, got %v", result.Resource["displayName"])
	}
}

func TestPatchRejectsReadOnlyAttribute(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	doc := patch.Document{Operations: []patch.Operation{
		{Op: patch.OpReplace, Path: "id", Value: "someone-else"},
	}}

	_, err = p.Patch(ctx, rc, "User", id, doc, "")
	if err == nil {
		t.Fatalf("expected a mutability error for patching id")
	}

	if !errors.IsMutabilityError(err) {
		t.Fatalf("expected a mutability error, got %T: %v", err, err)
	}

	got, err := p.Get(ctx, rc, "User", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Resource["id"] != id {
		t.Fatalf("expected the stored resource untouched, got id %v", got.Resource["id"])
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	result, err := p.Delete(ctx, rc, "User", id, "")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}

	got, err := p.Get(ctx, rc, "User", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Status != StatusNotFound {
		t.Fatalf("expected not-found, got %v", got.Status)
	}
}

func TestPermissionDeniedWithoutCreate(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	rc := &tenant.RequestContext{Tenant: &tenant.Context{
		TenantID:    "acme",
		Permissions: tenant.NewPermissions(tenant.PermissionRead),
	}}

	_, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if !errors.IsPermissionDeniedError(err) {
		t.Fatalf("expected a permission-denied error, got %T: %v", err, err)
	}
}

func TestQuotaEnforced(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	perms := tenant.NewPermissions(tenant.PermissionCreate, tenant.PermissionRead)
	perms.MaxUsers = 1

	rc := &tenant.RequestContext{Tenant: &tenant.Context{
		TenantID:    "acme",
		Permissions: perms,
	}}

	if _, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "first"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "second"})
	if !errors.IsCapacityExceededError(err) {
		t.Fatalf("expected a capacity-exceeded error, got %T: %v", err, err)
	}
}

func TestTenantIsolation(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	rcA := &tenant.RequestContext{Tenant: &tenant.Context{TenantID: "tenant-a"}}
	rcB := &tenant.RequestContext{Tenant: &tenant.Context{TenantID: "tenant-b"}}

	created, err := p.Create(ctx, rcA, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	got, err := p.Get(ctx, rcB, "User", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Status != StatusNotFound {
		t.Fatalf("expected tenant-b to not see tenant-a's resource, got %v", got.Status)
	}

	if _, err := p.Create(ctx, rcB, "User", map[string]interface{}{"userName": "bjensen"}); err != nil {
		t.Fatalf("expected the same userName to be allowed in a different tenant, got %v", err)
	}
}

func TestCreateStampsMeta(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)

	meta, ok := created.Resource["meta"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a meta block, got %v", created.Resource["meta"])
	}

	if meta["resourceType"] != "User" {
		t.Errorf("unexpected meta.resourceType: %v", meta["resourceType"])
	}

	if meta["created"] != meta["lastModified"] {
		t.Errorf("expected created == lastModified on create, got %v / %v", meta["created"], meta["lastModified"])
	}

	if v, _ := meta["version"].(string); v == "" {
		t.Errorf("expected a non-empty meta.version")
	}

	wantSuffix := "/v2/Users/" + id
	if loc, _ := meta["location"].(string); !strings.HasSuffix(loc, wantSuffix) {
		t.Errorf("expected meta.location ending in %s, got %v", wantSuffix, meta["location"])
	}

	schemas, ok := created.Resource["schemas"].([]interface{})
	if !ok || len(schemas) == 0 || schemas[0] != schema.URNUser {
		t.Errorf("expected schemas stamped with the base URN, got %v", created.Resource["schemas"])
	}
}

func TestUpdatePreservesCreatedAndBumpsVersionOnlyOnChange(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id := created.Resource["id"].(string)
	createdAt := created.Resource["meta"].(map[string]interface{})["created"]

	noop, err := p.Update(ctx, rc, "User", id, map[string]interface{}{"userName": "bjensen"}, "")
	if err != nil {
		t.Fatalf("Update (no-op): %v", err)
	}

	if noop.CurrentVersion != created.CurrentVersion {
		t.Errorf("expected an unchanged resource to keep its version, got %s -> %s", created.CurrentVersion, noop.CurrentVersion)
	}

	changed, err := p.Update(ctx, rc, "User", id, map[string]interface{}{"userName": "bjensen", "displayName": "Babs"}, "")
	if err != nil {
		t.Fatalf("Update (changed): %v", err)
	}

	if changed.CurrentVersion == created.CurrentVersion {
		t.Errorf("expected a changed resource to get a new version")
	}

	if got := changed.Resource["meta"].(map[string]interface{})["created"]; got != createdAt {
		t.Errorf("expected meta.created preserved across update, got %v", got)
	}
}

func TestCreateRejectsUndeclaredAttribute(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	rc := &tenant.RequestContext{}

	_, err := p.Create(ctx, rc, "User", map[string]interface{}{
		"userName":       "bjensen",
		"shoePreference": "barefoot",
	})
	if !errors.IsValidationError(err) {
		t.Fatalf("expected a validation error for an undeclared attribute, got %T: %v", err, err)
	}
}

func TestCreateWithEnterpriseExtension(t *testing.T) {
	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	userSchema, _ := registry.Get(schema.URNUser)
	ext, _ := registry.Get(schema.URNEnterpriseUser)

	rt := &ResourceType{Name: "User", Plural: "Users", Schema: userSchema, Extensions: []*schema.Schema{ext}}

	p, err := NewProvider(Config{
		Storage:  memory.New(),
		Registry: registry,
		BaseURL:  "https://example.com",
	}, rt)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	ctx := context.Background()
	rc := &tenant.RequestContext{}

	created, err := p.Create(ctx, rc, "User", map[string]interface{}{
		"userName": "bjensen",
		schema.URNEnterpriseUser: map[string]interface{}{
			"employeeNumber": "701984",
			"department":     "Tour Operations",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	schemas, _ := created.Resource["schemas"].([]interface{})
	found := false

	for _, urn := range schemas {
		if urn == schema.URNEnterpriseUser {
			found = true
		}
	}

	if !found {
		t.Errorf("expected the extension URN stamped into schemas, got %v", schemas)
	}
}
