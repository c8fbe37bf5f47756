package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/log"
	"github.com/scimware/scim-server/pkg/patch"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/storage"
	"github.com/scimware/scim-server/pkg/tenant"
	"github.com/scimware/scim-server/pkg/values"
	"github.com/scimware/scim-server/pkg/version"

	"github.com/golang/glog"
)

// Provider composes a storage backend, the schema registry and its per-
// tenant configuration into SCIM CRUD semantics. One Provider
// serves every tenant; tenant scoping happens per call via the supplied
// tenant.RequestContext.
type Provider struct {
	storage   storage.Provider
	registry  *schema.Registry
	resources map[string]*ResourceType

	strategy    tenant.Strategy
	baseURL     string
	scimVersion string

	configs  *tenant.ConfigStore
	policies *values.PolicyRegistry
}

// Config bundles a Provider's construction-time dependencies.
type Config struct {
	Storage     storage.Provider
	Registry    *schema.Registry
	Strategy    tenant.Strategy
	BaseURL     string
	ScimVersion string
	Configs     *tenant.ConfigStore

	// Policies are the optional, pluggable value-object-level composite
	// checks layered atop the RFC-mandated ones (reserved usernames,
	// allowed email domains, name consistency). Nil means only
	// the universal unique-primary check runs.
	Policies *values.PolicyRegistry
}

// NewProvider constructs a Provider from cfg, registering every supplied
// resource type.
func NewProvider(cfg Config, resourceTypes ...*ResourceType) (*Provider, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("provider: storage is required")
	}

	if cfg.Registry == nil {
		return nil, fmt.Errorf("provider: schema registry is required")
	}

	if cfg.ScimVersion == "" {
		cfg.ScimVersion = "v2"
	}

	if cfg.Configs == nil {
		cfg.Configs = tenant.NewConfigStore()
	}

	if cfg.Policies == nil {
		cfg.Policies = values.NewPolicyRegistry()
	}

	p := &Provider{
		storage:     cfg.Storage,
		registry:    cfg.Registry,
		resources:   make(map[string]*ResourceType, len(resourceTypes)),
		strategy:    cfg.Strategy,
		baseURL:     cfg.BaseURL,
		scimVersion: cfg.ScimVersion,
		configs:     cfg.Configs,
		policies:    cfg.Policies,
	}

	for _, rt := range resourceTypes {
		p.resources[rt.Name] = rt
	}

	return p, nil
}

// ResourceType returns the registered resource type named name, or
// (nil, false).
func (p *Provider) ResourceType(name string) (*ResourceType, bool) {
	rt, ok := p.resources[name]
	return rt, ok
}

// Create stores a new resource of resourceType, assigning it a server-side
// ID, stamping meta, checking uniqueness, and computing its initial
// version.
func (p *Provider) Create(ctx context.Context, rc *tenant.RequestContext, resourceType string, data map[string]interface{}) (*Result, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionCreate) {
		return nil, errors.NewPermissionDeniedError("create")
	}

	tenantID := rc.EffectiveTenantID()

	if err := p.checkQuota(ctx, rc, rt, tenantID); err != nil {
		return nil, err
	}

	if err := rejectClientMeta(data); err != nil {
		return nil, err
	}

	if err := ensureSchemas(data, rt); err != nil {
		return nil, err
	}

	if err := p.registry.Validate(rt.Schema, rt.Extensions, data, nil, schema.OperationCreate); err != nil {
		return nil, err
	}

	if err := p.validateValues(rt, data); err != nil {
		return nil, err
	}

	if err := p.checkUniqueness(ctx, tenantID, rt, data, ""); err != nil {
		return nil, err
	}

	id := newID()

	loc, err := location(p.strategy, p.baseURL, p.scimVersion, tenantID, rt, id)
	if err != nil {
		return nil, err
	}

	stampCreateMeta(data, rt, id, loc)

	raw, err := version.Compute(data)
	if err != nil {
		return nil, err
	}

	stampVersion(data, raw)

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, errors.NewValidationError("encoding resource: %v", err)
	}

	key := storage.Key{TenantID: tenantID, ResourceType: rt.Name, ResourceID: id}

	stored, err := p.storage.Put(ctx, key, encoded)
	if err != nil {
		return nil, mapStorageError(err)
	}

	p.audit(tenantID, "create", rt.Name, id)
	glog.V(log.LevelDebug).Infof("created %s %s/%s", rt.Name, tenantID, id)

	var out map[string]interface{}
	if err := json.Unmarshal(stored, &out); err != nil {
		return nil, errors.NewValidationError("decoding stored resource: %v", err)
	}

	return &Result{Status: StatusSuccess, Resource: out, CurrentVersion: string(raw)}, nil
}

// Get returns a single resource by ID, or a NotFound status if it doesn't
// exist.
func (p *Provider) Get(ctx context.Context, rc *tenant.RequestContext, resourceType, id string) (*Result, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionRead) {
		return nil, errors.NewPermissionDeniedError("read")
	}

	key := storage.Key{TenantID: rc.EffectiveTenantID(), ResourceType: rt.Name, ResourceID: id}

	data, err := p.storage.Get(ctx, key)
	if err != nil {
		return nil, mapStorageError(err)
	}

	if data == nil {
		return &Result{Status: StatusNotFound}, nil
	}

	var resource map[string]interface{}
	if err := json.Unmarshal(data, &resource); err != nil {
		return nil, errors.NewValidationError("decoding stored resource: %v", err)
	}

	return &Result{Status: StatusSuccess, Resource: resource, CurrentVersion: currentVersion(resource)}, nil
}

// Update replaces a resource wholesale, honoring an
// optional expectedVersion for optimistic concurrency. An empty
// expectedVersion makes the call unconditional.
func (p *Provider) Update(ctx context.Context, rc *tenant.RequestContext, resourceType, id string, data map[string]interface{}, expectedVersion string) (*Result, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionUpdate) {
		return nil, errors.NewPermissionDeniedError("update")
	}

	tenantID := rc.EffectiveTenantID()
	key := storage.Key{TenantID: tenantID, ResourceType: rt.Name, ResourceID: id}

	previous, err := p.loadPrevious(ctx, key)
	if err != nil {
		return nil, err
	}

	if previous == nil {
		return &Result{Status: StatusNotFound}, nil
	}

	if mismatch, result := checkExpectedVersion(previous, expectedVersion); mismatch {
		return result, nil
	}

	if err := ensureSchemas(data, rt); err != nil {
		return nil, err
	}

	if err := p.registry.Validate(rt.Schema, rt.Extensions, data, previous, schema.OperationReplace); err != nil {
		return nil, err
	}

	if err := p.validateValues(rt, data); err != nil {
		return nil, err
	}

	if err := p.checkUniqueness(ctx, tenantID, rt, data, id); err != nil {
		return nil, err
	}

	result, err := p.commit(ctx, key, data, previous)
	if err == nil && result.Status == StatusSuccess {
		p.audit(tenantID, "update", rt.Name, id)
	}

	return result, err
}

// Patch applies doc to a resource's stored representation and persists
// the result.
func (p *Provider) Patch(ctx context.Context, rc *tenant.RequestContext, resourceType, id string, doc patch.Document, expectedVersion string) (*Result, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionUpdate) {
		return nil, errors.NewPermissionDeniedError("update")
	}

	tenantID := rc.EffectiveTenantID()
	key := storage.Key{TenantID: tenantID, ResourceType: rt.Name, ResourceID: id}

	previous, err := p.loadPrevious(ctx, key)
	if err != nil {
		return nil, err
	}

	if previous == nil {
		return &Result{Status: StatusNotFound}, nil
	}

	if mismatch, result := checkExpectedVersion(previous, expectedVersion); mismatch {
		return result, nil
	}

	patched, err := patch.Apply(previous, doc, p.resolveAttribute(rt, p.configs.Get(tenantID)))
	if err != nil {
		return nil, err
	}

	if err := ensureSchemas(patched, rt); err != nil {
		return nil, err
	}

	if err := p.registry.Validate(rt.Schema, rt.Extensions, patched, previous, schema.OperationUpdate); err != nil {
		return nil, err
	}

	if err := p.validateValues(rt, patched); err != nil {
		return nil, err
	}

	if err := p.checkUniqueness(ctx, tenantID, rt, patched, id); err != nil {
		return nil, err
	}

	result, err := p.commit(ctx, key, patched, previous)
	if err == nil && result.Status == StatusSuccess {
		p.audit(tenantID, "patch", rt.Name, id)
	}

	return result, err
}

// Delete removes a resource, honoring an optional expectedVersion.
func (p *Provider) Delete(ctx context.Context, rc *tenant.RequestContext, resourceType, id string, expectedVersion string) (*Result, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionDelete) {
		return nil, errors.NewPermissionDeniedError("delete")
	}

	key := storage.Key{TenantID: rc.EffectiveTenantID(), ResourceType: rt.Name, ResourceID: id}

	previous, err := p.loadPrevious(ctx, key)
	if err != nil {
		return nil, err
	}

	if previous == nil {
		return &Result{Status: StatusNotFound}, nil
	}

	if mismatch, result := checkExpectedVersion(previous, expectedVersion); mismatch {
		return result, nil
	}

	if _, err := p.storage.Delete(ctx, key); err != nil {
		return nil, mapStorageError(err)
	}

	p.audit(key.TenantID, "delete", rt.Name, id)
	glog.V(log.LevelDebug).Infof("deleted %s %s/%s", rt.Name, key.TenantID, id)

	return &Result{Status: StatusSuccess}, nil
}

// List returns a page of resources under resourceType, ordered by ID.
func (p *Provider) List(ctx context.Context, rc *tenant.RequestContext, resourceType string, offset, limit int) ([]map[string]interface{}, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionList) {
		return nil, errors.NewPermissionDeniedError("list")
	}

	prefix := storage.Key{TenantID: rc.EffectiveTenantID(), ResourceType: rt.Name}

	entries, err := p.storage.List(ctx, prefix, offset, limit)
	if err != nil {
		return nil, mapStorageError(err)
	}

	return decodeEntries(entries)
}

// FindByAttribute returns every resource of resourceType whose value at
// dottedPath equals value, used by uniqueness probing and filtered search
// alike.
func (p *Provider) FindByAttribute(ctx context.Context, rc *tenant.RequestContext, resourceType, dottedPath, value string) ([]map[string]interface{}, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return nil, err
	}

	if !rc.EffectivePermissions().Allows(tenant.PermissionRead) {
		return nil, errors.NewPermissionDeniedError("read")
	}

	prefix := storage.Key{TenantID: rc.EffectiveTenantID(), ResourceType: rt.Name}

	entries, err := p.storage.FindByAttribute(ctx, prefix, dottedPath, value)
	if err != nil {
		return nil, mapStorageError(err)
	}

	return decodeEntries(entries)
}

// Exists reports whether a resource with the given ID is stored.
func (p *Provider) Exists(ctx context.Context, rc *tenant.RequestContext, resourceType, id string) (bool, error) {
	rt, err := p.requireResourceType(resourceType)
	if err != nil {
		return false, err
	}

	key := storage.Key{TenantID: rc.EffectiveTenantID(), ResourceType: rt.Name, ResourceID: id}

	ok, err := p.storage.Exists(ctx, key)
	if err != nil {
		return false, mapStorageError(err)
	}

	return ok, nil
}

// audit emits a structured log line for a mutating operation when the
// tenant's configuration has AuditEnabled set. The audit trail is
// log-only, never persisted.
func (p *Provider) audit(tenantID, operation, resourceType, id string) {
	cfg := p.configs.Get(tenantID)
	if !cfg.AuditEnabled {
		return
	}

	glog.V(log.LevelDebug).Infof("audit: tenant=%s op=%s resourceType=%s id=%s", tenantID, operation, resourceType, id)
}

func (p *Provider) requireResourceType(name string) (*ResourceType, error) {
	rt, ok := p.resources[name]
	if !ok {
		return nil, errors.NewUnsupportedResourceTypeError("resource type %q is not registered", name)
	}

	return rt, nil
}

func (p *Provider) checkQuota(ctx context.Context, rc *tenant.RequestContext, rt *ResourceType, tenantID string) error {
	max, limited := rc.EffectivePermissions().QuotaFor(rt.Name)
	if !limited {
		return nil
	}

	count, err := p.storage.Count(ctx, storage.Key{TenantID: tenantID, ResourceType: rt.Name})
	if err != nil {
		return mapStorageError(err)
	}

	if count >= max {
		return errors.NewCapacityExceededError("tenant %q has reached its %s quota of %d", tenantID, rt.Name, max)
	}

	return nil
}

func (p *Provider) loadPrevious(ctx context.Context, key storage.Key) (map[string]interface{}, error) {
	raw, err := p.storage.Get(ctx, key)
	if err != nil {
		return nil, mapStorageError(err)
	}

	if raw == nil {
		return nil, nil
	}

	var previous map[string]interface{}
	if err := json.Unmarshal(raw, &previous); err != nil {
		return nil, errors.NewValidationError("decoding stored resource: %v", err)
	}

	return previous, nil
}

// checkExpectedVersion compares expectedVersion (if supplied) against
// previous's stored version, returning (true, result) when the caller
// should return result immediately without proceeding.
func checkExpectedVersion(previous map[string]interface{}, expectedVersion string) (bool, *Result) {
	if expectedVersion == "" {
		return false, nil
	}

	current := currentVersion(previous)
	if version.Equal(version.Raw(expectedVersion), version.Raw(current)) {
		return false, nil
	}

	return true, &Result{
		Status:          StatusVersionMismatch,
		Resource:        previous,
		ExpectedVersion: expectedVersion,
		CurrentVersion:  current,
	}
}

// commit carries forward immutable meta, recomputes the version (only
// bumping meta.lastModified when the canonical bytes actually changed),
// persists, and decodes the stored result.
func (p *Provider) commit(ctx context.Context, key storage.Key, data, previous map[string]interface{}) (*Result, error) {
	carryForwardMeta(data, previous)

	prevRaw, err := version.Compute(previous)
	if err != nil {
		return nil, err
	}

	candidateRaw, err := version.Compute(data)
	if err != nil {
		return nil, err
	}

	if !version.Equal(prevRaw, candidateRaw) {
		stampVersion(data, candidateRaw)
	} else if prevMeta, ok := previous["meta"].(map[string]interface{}); ok {
		data["meta"] = prevMeta
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, errors.NewValidationError("encoding resource: %v", err)
	}

	stored, err := p.storage.Put(ctx, key, encoded)
	if err != nil {
		return nil, mapStorageError(err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(stored, &out); err != nil {
		return nil, errors.NewValidationError("decoding stored resource: %v", err)
	}

	return &Result{Status: StatusSuccess, Resource: out, CurrentVersion: currentVersion(out)}, nil
}

// resolveAttribute returns a patch.AttributeResolver bound to rt, so the
// PATCH engine can enforce mutability without importing the schema
// registry's tenant bookkeeping. An extension schema the tenant hasn't
// activated resolves to nil, the same as an unknown URN.
func (p *Provider) resolveAttribute(rt *ResourceType, cfg *tenant.ScimConfiguration) patch.AttributeResolver {
	return func(schemaURN, attrName string) *schema.AttributeDefinition {
		if schemaURN != "" && !cfg.ExtensionActive(schemaURN) {
			return nil
		}

		s := rt.schemaForURN(schemaURN)
		if s == nil {
			return nil
		}

		return s.Attribute(attrName)
	}
}

// validateValues runs the value object layer's per-attribute and composite
// invariants on top of the schema registry's structural pass:
// email shape, unique-primary enforcement re-derived at the Value level, and
// any operator-registered policy hooks (reserved usernames, allowed email
// domains, name consistency).
func (p *Provider) validateValues(rt *ResourceType, data map[string]interface{}) error {
	resource, err := values.BuildResource(rt.Schema.Attributes, data)
	if err != nil {
		return err
	}

	return p.policies.Validate(resource)
}

func decodeEntries(entries []storage.Entry) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(entries))

	for _, e := range entries {
		var resource map[string]interface{}
		if err := json.Unmarshal(e.Data, &resource); err != nil {
			return nil, errors.NewValidationError("decoding stored resource: %v", err)
		}

		out = append(out, resource)
	}

	return out, nil
}

// mapStorageError translates a pkg/storage error onto the pkg/errors kind
// the Server façade maps onto an HTTP response.
func mapStorageError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case storage.IsNotFound(err):
		return errors.NewNotFoundError("%v", err)
	case storage.IsConflict(err):
		return errors.NewConflictError("%v", err)
	case storage.IsInvalidInput(err):
		return errors.NewValidationError("%v", err)
	case storage.IsTemporary(err):
		return errors.NewStorageTemporaryError(err)
	default:
		return errors.NewStorageInvalidError(err)
	}
}
