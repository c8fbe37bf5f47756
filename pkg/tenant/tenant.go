// Package tenant defines the request-scoped tenant/permission context every
// Resource Provider call is routed through, plus the URL-generation
// strategies used for meta.location and member $ref values.
package tenant

import (
	"fmt"
	"strings"
)

// DefaultTenantID is the implicit tenant used when a RequestContext carries
// no tenant scope of its own.
const DefaultTenantID = "default"

// IsolationLevel selects whether cross-tenant references are permitted.
type IsolationLevel string

const (
	// IsolationStrict forbids all cross-tenant references.
	IsolationStrict IsolationLevel = "strict"
	// IsolationStandard allows references within a tenant family but not
	// across unrelated tenants.
	IsolationStandard IsolationLevel = "standard"
	// IsolationShared allows cross-tenant references freely.
	IsolationShared IsolationLevel = "shared"
)

// Permission names one of the operation classes a RequestContext may be
// granted.
type Permission string

const (
	PermissionCreate Permission = "create"
	PermissionRead   Permission = "read"
	PermissionUpdate Permission = "update"
	PermissionDelete Permission = "delete"
	PermissionList   Permission = "list"
)

// Permissions is the set of operations a RequestContext is allowed to
// perform, plus optional per-resource-type quotas.
type Permissions struct {
	granted map[Permission]struct{}

	// MaxUsers caps the number of User resources a tenant may hold; zero
	// means unlimited.
	MaxUsers int

	// MaxGroups caps the number of Group resources a tenant may hold;
	// zero means unlimited.
	MaxGroups int
}

// NewPermissions returns a Permissions set granting exactly the given
// operations.
func NewPermissions(granted ...Permission) *Permissions {
	p := &Permissions{granted: make(map[Permission]struct{}, len(granted))}
	for _, g := range granted {
		p.granted[g] = struct{}{}
	}

	return p
}

// AllPermissions returns a Permissions set granting every operation, with
// no quotas, the default for single-tenant deployments.
func AllPermissions() *Permissions {
	return NewPermissions(PermissionCreate, PermissionRead, PermissionUpdate, PermissionDelete, PermissionList)
}

// Allows reports whether op is granted.
func (p *Permissions) Allows(op Permission) bool {
	if p == nil {
		return false
	}

	_, ok := p.granted[op]

	return ok
}

// QuotaFor returns the configured quota for resourceType ("User" or
// "Group"), and whether one is configured at all.
func (p *Permissions) QuotaFor(resourceType string) (int, bool) {
	if p == nil {
		return 0, false
	}

	switch resourceType {
	case "User":
		return p.MaxUsers, p.MaxUsers > 0
	case "Group":
		return p.MaxGroups, p.MaxGroups > 0
	default:
		return 0, false
	}
}

// Context is the per-request tenant scope: (tenant_id, client_id), its
// permission set, and its isolation level.
type Context struct {
	TenantID       string
	ClientID       string
	Permissions    *Permissions
	IsolationLevel IsolationLevel
}

// RequestContext wraps an optional Context with a request ID. A
// nil Context means the caller supplied none; EffectiveTenantID then
// resolves to DefaultTenantID with an all-permissions grant.
type RequestContext struct {
	RequestID string
	Tenant    *Context
}

// EffectiveTenantID returns the tenant this request is scoped to,
// DefaultTenantID when no TenantContext was supplied.
func (r *RequestContext) EffectiveTenantID() string {
	if r == nil || r.Tenant == nil || r.Tenant.TenantID == "" {
		return DefaultTenantID
	}

	return r.Tenant.TenantID
}

// EffectivePermissions returns the request's permission set, defaulting to
// AllPermissions when no tenant scope was supplied.
func (r *RequestContext) EffectivePermissions() *Permissions {
	if r == nil || r.Tenant == nil || r.Tenant.Permissions == nil {
		return AllPermissions()
	}

	return r.Tenant.Permissions
}

// EffectiveClientID returns the request's client ID, or "" when none was
// supplied.
func (r *RequestContext) EffectiveClientID() string {
	if r == nil || r.Tenant == nil {
		return ""
	}

	return r.Tenant.ClientID
}

// EffectiveIsolationLevel returns the request's isolation level, defaulting
// to Strict when unspecified.
func (r *RequestContext) EffectiveIsolationLevel() IsolationLevel {
	if r == nil || r.Tenant == nil || r.Tenant.IsolationLevel == "" {
		return IsolationStrict
	}

	return r.Tenant.IsolationLevel
}

// Strategy is a URL-generation strategy for meta.location and member $ref
// values.
type Strategy int

const (
	// SingleTenant emits "<base>/<scim_version>/<Resources>/<id>",
	// ignoring the tenant ID.
	SingleTenant Strategy = iota
	// Subdomain emits "<scheme>://<tenant>.<host>/<scim_version>/<Resources>/<id>".
	Subdomain
	// PathBased emits "<base>/<tenant>/<scim_version>/<Resources>/<id>".
	PathBased
)

// Locate builds a meta.location / $ref URL for a resource under the given
// strategy. resourcePlural is the URL path segment for
// the resource type (e.g. "Users", "Groups").
func Locate(strategy Strategy, baseURL, scimVersion, tenantID, resourcePlural, id string) (string, error) {
	base := strings.TrimSuffix(baseURL, "/")

	switch strategy {
	case SingleTenant:
		return fmt.Sprintf("%s/%s/%s/%s", base, scimVersion, resourcePlural, id), nil
	case Subdomain:
		if tenantID == "" {
			return "", fmt.Errorf("subdomain tenant strategy requires a tenant id")
		}

		scheme, host, err := splitScheme(base)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s://%s.%s/%s/%s/%s", scheme, tenantID, host, scimVersion, resourcePlural, id), nil
	case PathBased:
		if tenantID == "" {
			return "", fmt.Errorf("path-based tenant strategy requires a tenant id")
		}

		return fmt.Sprintf("%s/%s/%s/%s/%s", base, tenantID, scimVersion, resourcePlural, id), nil
	default:
		return "", fmt.Errorf("unknown tenant strategy %d", strategy)
	}
}

// ValidScheme reports whether a base URL's scheme is one the server
// accepts: http, https, or mcp.
func ValidScheme(baseURL string) bool {
	scheme, _, err := splitScheme(baseURL)
	if err != nil {
		return false
	}

	switch scheme {
	case "http", "https", "mcp":
		return true
	default:
		return false
	}
}

func splitScheme(baseURL string) (scheme, rest string, err error) {
	idx := strings.Index(baseURL, "://")
	if idx < 0 {
		return "", "", fmt.Errorf("base URL %q has no scheme", baseURL)
	}

	return baseURL[:idx], baseURL[idx+len("://"):], nil
}
