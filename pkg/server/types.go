// Package server implements the transport-agnostic Server façade: it turns a (tenant-scoped, schema-validated) Request envelope into
// a Response envelope by dispatching to the Resource Provider, handling
// rate limiting, credential resolution, ServiceProviderConfig discovery
// and search-filter parsing along the way. cmd/scim-server's HTTP binding
// is one possible transport; the façade itself knows nothing about HTTP.
package server

import (
	"github.com/scimware/scim-server/pkg/patch"
	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/tenant"
)

// Op names one operation the façade dispatches.
type Op string

const (
	OpCreate        Op = "create"
	OpGet           Op = "get"
	OpUpdate        Op = "update"
	OpReplace       Op = "replace"
	OpPatch         Op = "patch"
	OpDelete        Op = "delete"
	OpList          Op = "list"
	OpSearch        Op = "search"
	OpExists        Op = "exists"
	OpGetSchemas    Op = "get_schemas"
	OpGetServerInfo Op = "get_server_info"
)

// Query carries a List/Search request's pagination and filter parameters
// (RFC 7644 §3.4.2).
type Query struct {
	// StartIndex is 1-based per RFC 7644 §3.4.2, a 0 or negative value
	// means "unspecified, use the default".
	StartIndex int
	Count      int
	// Filter is a single "attr eq \"value\"" expression; empty means no
	// filter. The grammar subset is intentionally narrow: the full SCIM
	// filter language is not implemented.
	Filter string
}

// TenantRef identifies the caller a Request is scoped to, resolved against
// a tenant.CredentialStore by the Server façade. A zero-value
// TenantRef is the single-tenant default: every permission is granted.
type TenantRef struct {
	TenantID string
	ClientID string
}

// Request is the transport-agnostic operation envelope: every
// binding (HTTP, or any other) constructs one of these and calls
// Server.Dispatch.
type Request struct {
	Op           Op
	ResourceType string
	ResourceID   string
	Data         map[string]interface{}
	Patch        patch.Document
	Query        Query

	// ExpectedVersion carries an If-Match precondition; empty means the
	// call is unconditional.
	ExpectedVersion string

	Tenant    TenantRef
	RequestID string
}

// Response is the transport-agnostic result envelope. Exactly
// one of Data or Error is meaningful, selected by Success.
type Response struct {
	Success bool

	// Data carries the operation's payload: a single resource for
	// Create/Get/Update/Patch, a ListResponse-shaped map for List/Search,
	// a bool under "exists" for Exists, the ServiceProviderConfig
	// document or the schema list otherwise.
	Data map[string]interface{}

	// CurrentVersion is the resulting resource's opaque version token,
	// set whenever Data carries a single resource.
	CurrentVersion string

	// Error carries Kind/HTTPStatus/ScimType/Detail when Success is
	// false.
	Error *ErrorInfo
}

// ErrorInfo is the façade's transport-agnostic rendering of a
// pkg/errors error: every field an HTTP binding needs to build
// the SCIM error payload and pick a status code, already resolved so the
// binding never has to import pkg/errors itself.
type ErrorInfo struct {
	Kind       string
	HTTPStatus int
	ScimType   string
	Detail     string

	// AttributePath is the dotted path into the request body the error
	// concerns, when known.
	AttributePath string
	// AttributeValue is the value found at AttributePath, when resolvable.
	AttributeValue interface{}
}

// Server composes a Provider with the façade-level concerns layered on
// top of it: credential resolution, rate limiting, and discovery
// endpoints. One Server instance is process-wide.
type Server struct {
	provider *provider.Provider

	resourceTypes map[string]resourceTypeInfo

	credentials *tenant.CredentialStore
	rateLimiter *tenant.RateLimiter

	serviceProviderConfig map[string]interface{}
	schemas               []map[string]interface{}
}

// resourceTypeInfo is the façade's view of a registered resource type: its
// plural URL segment (recorded, but not read by any dispatch path; there is
// no ResourceTypes discovery operation) and the set of operations it permits; anything outside the set is rejected as
// unsupported. A nil allowed
// set means every operation is allowed.
type resourceTypeInfo struct {
	name    string
	plural  string
	allowed map[Op]bool
}

// permits reports whether op is allowed against this resource type. A
// resourceTypeInfo with no declared allow-list permits everything.
func (rt resourceTypeInfo) permits(op Op) bool {
	if rt.allowed == nil {
		return true
	}

	return rt.allowed[op]
}
