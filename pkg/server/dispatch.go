package server

import (
	"context"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/tenant"
)

// Dispatch resolves req's tenant, enforces its rate limit, and delegates
// to the Resource Provider, translating the result (or error) into a
// Response envelope.
func (s *Server) Dispatch(ctx context.Context, req Request) *Response {
	if resp := s.checkResourceType(req); resp != nil {
		return resp
	}

	rc := s.requestContext(req)

	if !s.rateLimiter.Allow(rc.EffectiveTenantID(), string(req.Op)) {
		return errorResponse(errors.NewCapacityExceededError("rate limit exceeded for operation %q", req.Op))
	}

	switch req.Op {
	case OpCreate:
		return s.dispatchCreate(ctx, rc, req)
	case OpGet:
		return s.dispatchGet(ctx, rc, req)
	case OpUpdate, OpReplace:
		return s.dispatchReplace(ctx, rc, req)
	case OpPatch:
		return s.dispatchPatch(ctx, rc, req)
	case OpDelete:
		return s.dispatchDelete(ctx, rc, req)
	case OpList:
		return s.dispatchList(ctx, rc, req)
	case OpSearch:
		return s.dispatchSearch(ctx, rc, req)
	case OpExists:
		return s.dispatchExists(ctx, rc, req)
	case OpGetSchemas:
		return s.dispatchGetSchemas()
	case OpGetServerInfo:
		return s.dispatchGetServerInfo()
	default:
		return errorResponse(errors.NewUnsupportedOperationError("unknown operation %q", req.Op))
	}
}

// checkResourceType resolves req.ResourceType to a registered handler,
// then confirms the requested operation is in its allowed set. GetSchemas and GetServerInfo name no resource type and are
// exempt. Returns nil when the request may proceed.
func (s *Server) checkResourceType(req Request) *Response {
	switch req.Op {
	case OpGetSchemas, OpGetServerInfo:
		return nil
	}

	info, ok := s.resourceTypes[req.ResourceType]
	if !ok {
		return errorResponse(errors.NewUnsupportedResourceTypeError("resource type %q is not registered", req.ResourceType))
	}

	if !info.permits(req.Op) {
		return errorResponse(errors.NewUnsupportedOperationError("operation %q is not permitted on resource type %q", req.Op, req.ResourceType))
	}

	return nil
}

// requestContext resolves req.Tenant against the credential store. An empty
// TenantID yields no tenant scope (the default tenant, all permissions);
// when no credential is registered for the pair, the façade does not reject
// the caller but scopes it to the requested TenantID with all permissions.
func (s *Server) requestContext(req Request) *tenant.RequestContext {
	rc := &tenant.RequestContext{RequestID: req.RequestID}

	if req.Tenant.TenantID == "" {
		return rc
	}

	if ctx, ok := s.credentials.Resolve(req.Tenant.TenantID, req.Tenant.ClientID); ok {
		rc.Tenant = ctx
		return rc
	}

	rc.Tenant = &tenant.Context{
		TenantID:       req.Tenant.TenantID,
		ClientID:       req.Tenant.ClientID,
		Permissions:    tenant.AllPermissions(),
		IsolationLevel: tenant.IsolationStrict,
	}

	return rc
}

func (s *Server) dispatchCreate(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	result, err := s.provider.Create(ctx, rc, req.ResourceType, req.Data)
	if err != nil {
		resp := errorResponse(err)
		attachAttributeValue(resp.Error, req.Data)
		return resp
	}

	return resultResponse(result)
}

func (s *Server) dispatchGet(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	result, err := s.provider.Get(ctx, rc, req.ResourceType, req.ResourceID)
	if err != nil {
		return errorResponse(err)
	}

	return resultResponse(result)
}

func (s *Server) dispatchReplace(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	result, err := s.provider.Update(ctx, rc, req.ResourceType, req.ResourceID, req.Data, req.ExpectedVersion)
	if err != nil {
		resp := errorResponse(err)
		attachAttributeValue(resp.Error, req.Data)
		return resp
	}

	return resultResponse(result)
}

func (s *Server) dispatchPatch(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	result, err := s.provider.Patch(ctx, rc, req.ResourceType, req.ResourceID, req.Patch, req.ExpectedVersion)
	if err != nil {
		return errorResponse(err)
	}

	return resultResponse(result)
}

func (s *Server) dispatchDelete(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	result, err := s.provider.Delete(ctx, rc, req.ResourceType, req.ResourceID, req.ExpectedVersion)
	if err != nil {
		return errorResponse(err)
	}

	return resultResponse(result)
}

func (s *Server) dispatchList(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	offset, limit := pageBounds(req.Query)

	resources, err := s.provider.List(ctx, rc, req.ResourceType, offset, limit)
	if err != nil {
		return errorResponse(err)
	}

	return listResponse(resources, req.Query)
}

// dispatchSearch parses req.Query.Filter into an attribute/value pair and
// delegates to the Provider's attribute-indexed lookup; there is no full
// filter evaluator behind it.
func (s *Server) dispatchSearch(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	attr, value, err := parseFilter(req.Query.Filter)
	if err != nil {
		return errorResponse(err)
	}

	resources, ferr := s.provider.FindByAttribute(ctx, rc, req.ResourceType, attr, value)
	if ferr != nil {
		return errorResponse(ferr)
	}

	return listResponse(paginate(resources, req.Query), req.Query)
}

func (s *Server) dispatchExists(ctx context.Context, rc *tenant.RequestContext, req Request) *Response {
	ok, err := s.provider.Exists(ctx, rc, req.ResourceType, req.ResourceID)
	if err != nil {
		return errorResponse(err)
	}

	return &Response{Success: true, Data: map[string]interface{}{"exists": ok}}
}

func (s *Server) dispatchGetSchemas() *Response {
	return &Response{Success: true, Data: map[string]interface{}{
		"schemas":      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		"Resources":    s.schemas,
		"totalResults": len(s.schemas),
	}}
}

func (s *Server) dispatchGetServerInfo() *Response {
	return &Response{Success: true, Data: s.serviceProviderConfig}
}

// pageBounds derives a storage offset/limit pair from a 1-based
// startIndex/count query, defaulting count to the protocol's usual page
// size when unspecified.
func pageBounds(q Query) (offset, limit int) {
	const defaultCount = 100

	if q.StartIndex > 1 {
		offset = q.StartIndex - 1
	}

	limit = q.Count
	if limit <= 0 {
		limit = defaultCount
	}

	return offset, limit
}

// paginate applies a Query's startIndex/count window to an already
// materialized result set, the path dispatchSearch takes since
// FindByAttribute has no pagination of its own.
func paginate(resources []map[string]interface{}, q Query) []map[string]interface{} {
	offset, limit := pageBounds(q)

	if offset >= len(resources) {
		return nil
	}

	end := offset + limit
	if end > len(resources) {
		end = len(resources)
	}

	return resources[offset:end]
}

func resultResponse(result *provider.Result) *Response {
	switch result.Status {
	case provider.StatusNotFound:
		return errorResponse(errors.NewNotFoundError("resource not found"))
	case provider.StatusVersionMismatch:
		return errorResponse(errors.NewPreconditionFailedError(result.ExpectedVersion, result.CurrentVersion))
	default:
		return &Response{Success: true, Data: result.Resource, CurrentVersion: result.CurrentVersion}
	}
}

func listResponse(resources []map[string]interface{}, q Query) *Response {
	items := make([]interface{}, len(resources))
	for i, r := range resources {
		items[i] = r
	}

	startIndex := q.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}

	return &Response{Success: true, Data: map[string]interface{}{
		"schemas":      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		"totalResults": len(resources),
		"startIndex":   startIndex,
		"itemsPerPage": len(resources),
		"Resources":    items,
	}}
}

func errorResponse(err error) *Response {
	info := &ErrorInfo{
		Kind:       errors.Kind(err),
		HTTPStatus: errors.HTTPStatus(err),
		ScimType:   errors.ScimType(err),
		Detail:     err.Error(),
	}

	if path, ok := errors.AttributePath(err); ok {
		info.AttributePath = path
	}

	return &Response{Success: false, Error: info}
}

// attachAttributeValue resolves an ErrorInfo's AttributePath against the
// request body that produced it, when both are available, so HTTP
// bindings can include the offending value in the error response without
// importing pkg/schema themselves.
func attachAttributeValue(info *ErrorInfo, resource map[string]interface{}) {
	if info == nil || info.AttributePath == "" || resource == nil {
		return
	}

	if value, ok := schema.ResolvePath(resource, info.AttributePath); ok {
		info.AttributeValue = value
	}
}
