package errors

import "net/http"

// HTTPStatus maps an error kind to the HTTP status code a transport
// should use for it. Errors that are not one of this package's kinds map
// to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidationError(err), IsMutabilityError(err):
		return http.StatusBadRequest
	case IsNotFoundError(err), IsUnsupportedResourceTypeError(err):
		return http.StatusNotFound
	case IsConflictError(err):
		return http.StatusConflict
	case IsPreconditionFailedError(err):
		return http.StatusPreconditionFailed
	case IsPermissionDeniedError(err):
		return http.StatusForbidden
	case IsUnsupportedOperationError(err):
		return http.StatusNotImplemented
	case IsCapacityExceededError(err):
		return http.StatusInsufficientStorage
	case IsStorageTemporaryError(err):
		return http.StatusServiceUnavailable
	case IsStorageInvalidError(err):
		return http.StatusInternalServerError
	case IsInvalidPathError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ScimType maps an error to the scimType token used in the SCIM error
// payload (RFC 7644 §3.12), returning "" when the kind has no associated
// token.
func ScimType(err error) string {
	if p, ok := err.(*invalidPathError); ok {
		return p.scimType
	}

	switch {
	case IsMutabilityError(err):
		return "mutability"
	case IsConflictError(err):
		return "uniqueness"
	case IsValidationError(err):
		return "invalidSyntax"
	default:
		return ""
	}
}

// Kind is a stable, lower_snake_case label for an error's taxonomy kind,
// used in response metadata so callers can branch without string-matching
// messages.
func Kind(err error) string {
	switch {
	case IsValidationError(err):
		return "validation"
	case IsNotFoundError(err):
		return "not_found"
	case IsConflictError(err):
		return "conflict"
	case IsPreconditionFailedError(err):
		return "precondition_failed"
	case IsPermissionDeniedError(err):
		return "permission_denied"
	case IsUnsupportedOperationError(err):
		return "unsupported_operation"
	case IsUnsupportedResourceTypeError(err):
		return "unsupported_resource_type"
	case IsCapacityExceededError(err):
		return "capacity_exceeded"
	case IsStorageTemporaryError(err):
		return "storage_temporary"
	case IsStorageInvalidError(err):
		return "storage_invalid"
	case IsInvalidPathError(err):
		return "invalid_path"
	case IsMutabilityError(err):
		return "mutability"
	default:
		return "internal"
	}
}
