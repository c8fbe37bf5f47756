// Package errors defines the SCIM protocol engine's error taxonomy.
//
// Each error is a *kind*, not a type hierarchy: one unexported struct per
// kind, a NewXxxError constructor formatted like fmt.Errorf, and an
// IsXxxError classifier. Callers that need to branch on the kind of a
// failure (the Server façade mapping errors onto HTTP status codes and
// scimType values, for instance) use the classifiers rather than a type
// switch.
package errors

import (
	"fmt"
)

// validationError errors are raised when a resource fails schema or
// attribute-level validation (type conformance, required attributes,
// canonical values, mutability, multi-valued primary uniqueness).
type validationError struct {
	message string
	path    string
}

// NewValidationError returns a new validation error formatted like fmt.Errorf.
func NewValidationError(message string, arguments ...interface{}) error {
	return &validationError{message: fmt.Sprintf(message, arguments...)}
}

// NewValidationErrorWithPath returns a new validation error that also
// records the offending attribute path, surfaced in the response metadata.
func NewValidationErrorWithPath(path, message string, arguments ...interface{}) error {
	return &validationError{message: fmt.Sprintf(message, arguments...), path: path}
}

// IsValidationError returns whether an error is a validation error.
func IsValidationError(err error) bool {
	_, ok := err.(*validationError)
	return ok
}

// AttributePath returns the attribute path recorded on a validation error,
// if any.
func AttributePath(err error) (string, bool) {
	v, ok := err.(*validationError)
	if !ok || v.path == "" {
		return "", false
	}
	return v.path, true
}

func (e *validationError) Error() string {
	if e.path != "" {
		return fmt.Sprintf("%s: %s", e.path, e.message)
	}
	return e.message
}

// notFoundError errors are raised when a resource does not exist.
type notFoundError struct {
	message string
}

// NewNotFoundError returns a new not-found error formatted like fmt.Errorf.
func NewNotFoundError(message string, arguments ...interface{}) error {
	return &notFoundError{message: fmt.Sprintf(message, arguments...)}
}

// IsNotFoundError returns whether an error is a not-found error.
func IsNotFoundError(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

func (e *notFoundError) Error() string {
	return e.message
}

// conflictError errors are raised when a uniqueness constraint is violated
// or a resource already exists.
type conflictError struct {
	message string
}

// NewConflictError returns a new conflict error formatted like fmt.Errorf.
func NewConflictError(message string, arguments ...interface{}) error {
	return &conflictError{message: fmt.Sprintf(message, arguments...)}
}

// IsConflictError returns whether an error is a conflict error.
func IsConflictError(err error) bool {
	_, ok := err.(*conflictError)
	return ok
}

func (e *conflictError) Error() string {
	return e.message
}

// preconditionFailedError errors are raised when a conditional operation's
// expected version does not match the stored version.
type preconditionFailedError struct {
	message  string
	expected string
	current  string
}

// NewPreconditionFailedError returns a new precondition-failed error
// recording the expected and current opaque version tokens.
func NewPreconditionFailedError(expected, current string) error {
	return &preconditionFailedError{
		message:  fmt.Sprintf("version mismatch: expected %q, current %q", expected, current),
		expected: expected,
		current:  current,
	}
}

// IsPreconditionFailedError returns whether an error is a precondition-failed error.
func IsPreconditionFailedError(err error) bool {
	_, ok := err.(*preconditionFailedError)
	return ok
}

// PreconditionVersions returns the expected and current versions recorded
// on a precondition-failed error.
func PreconditionVersions(err error) (expected, current string, ok bool) {
	p, isPrecondition := err.(*preconditionFailedError)
	if !isPrecondition {
		return "", "", false
	}
	return p.expected, p.current, true
}

func (e *preconditionFailedError) Error() string {
	return e.message
}

// permissionDeniedError errors are raised when a RequestContext's permission
// set does not allow the attempted operation.
type permissionDeniedError struct {
	message   string
	operation string
}

// NewPermissionDeniedError returns a new permission-denied error naming the
// offending operation.
func NewPermissionDeniedError(operation string) error {
	return &permissionDeniedError{
		message:   fmt.Sprintf("permission denied for operation %q", operation),
		operation: operation,
	}
}

// IsPermissionDeniedError returns whether an error is a permission-denied error.
func IsPermissionDeniedError(err error) bool {
	_, ok := err.(*permissionDeniedError)
	return ok
}

func (e *permissionDeniedError) Error() string {
	return e.message
}

// unsupportedOperationError errors are raised when a resource type's handler
// does not allow the requested operation.
type unsupportedOperationError struct {
	message string
}

// NewUnsupportedOperationError returns a new unsupported-operation error
// formatted like fmt.Errorf.
func NewUnsupportedOperationError(message string, arguments ...interface{}) error {
	return &unsupportedOperationError{message: fmt.Sprintf(message, arguments...)}
}

// IsUnsupportedOperationError returns whether an error is an
// unsupported-operation error.
func IsUnsupportedOperationError(err error) bool {
	_, ok := err.(*unsupportedOperationError)
	return ok
}

func (e *unsupportedOperationError) Error() string {
	return e.message
}

// unsupportedResourceTypeError errors are raised when the Server façade
// cannot resolve a resource type to a registered handler.
type unsupportedResourceTypeError struct {
	message string
}

// NewUnsupportedResourceTypeError returns a new unsupported-resource-type
// error formatted like fmt.Errorf.
func NewUnsupportedResourceTypeError(message string, arguments ...interface{}) error {
	return &unsupportedResourceTypeError{message: fmt.Sprintf(message, arguments...)}
}

// IsUnsupportedResourceTypeError returns whether an error is an
// unsupported-resource-type error.
func IsUnsupportedResourceTypeError(err error) bool {
	_, ok := err.(*unsupportedResourceTypeError)
	return ok
}

func (e *unsupportedResourceTypeError) Error() string {
	return e.message
}

// capacityExceededError errors are raised when a tenant quota is exceeded.
type capacityExceededError struct {
	message string
}

// NewCapacityExceededError returns a new capacity-exceeded error formatted
// like fmt.Errorf.
func NewCapacityExceededError(message string, arguments ...interface{}) error {
	return &capacityExceededError{message: fmt.Sprintf(message, arguments...)}
}

// IsCapacityExceededError returns whether an error is a capacity-exceeded error.
func IsCapacityExceededError(err error) bool {
	_, ok := err.(*capacityExceededError)
	return ok
}

func (e *capacityExceededError) Error() string {
	return e.message
}

// storageTemporaryError errors are raised when a storage backend reports a
// transient failure (timeout, unavailability). Safe to retry.
type storageTemporaryError struct {
	message string
	cause   error
}

// NewStorageTemporaryError wraps a backend error as a temporary storage error.
func NewStorageTemporaryError(cause error) error {
	return &storageTemporaryError{message: fmt.Sprintf("storage temporarily unavailable: %v", cause), cause: cause}
}

// IsStorageTemporaryError returns whether an error is a temporary storage error.
func IsStorageTemporaryError(err error) bool {
	_, ok := err.(*storageTemporaryError)
	return ok
}

func (e *storageTemporaryError) Error() string {
	return e.message
}

func (e *storageTemporaryError) Unwrap() error {
	return e.cause
}

// storageInvalidError errors are raised when stored data is corrupt or
// cannot be serialized/deserialized.
type storageInvalidError struct {
	message string
	cause   error
}

// NewStorageInvalidError wraps a backend error as an invalid-data storage error.
func NewStorageInvalidError(cause error) error {
	return &storageInvalidError{message: fmt.Sprintf("storage data invalid: %v", cause), cause: cause}
}

// IsStorageInvalidError returns whether an error is an invalid-data storage error.
func IsStorageInvalidError(err error) bool {
	_, ok := err.(*storageInvalidError)
	return ok
}

func (e *storageInvalidError) Error() string {
	return e.message
}

func (e *storageInvalidError) Unwrap() error {
	return e.cause
}

// invalidPathError errors are raised when a PATCH path expression cannot be
// parsed, uses an unsupported filter, or addresses nothing in the document.
type invalidPathError struct {
	message  string
	scimType string
}

// NewInvalidPathError returns a new invalid-path error with scimType
// "invalidPath".
func NewInvalidPathError(message string, arguments ...interface{}) error {
	return &invalidPathError{message: fmt.Sprintf(message, arguments...), scimType: "invalidPath"}
}

// NewInvalidFilterError returns a new invalid-path error with scimType
// "invalidFilter", for PATCH filter expressions outside the supported subset.
func NewInvalidFilterError(message string, arguments ...interface{}) error {
	return &invalidPathError{message: fmt.Sprintf(message, arguments...), scimType: "invalidFilter"}
}

// NewNoTargetError returns a new invalid-path error with scimType
// "noTarget", for a path that addresses nothing in the document.
func NewNoTargetError(message string, arguments ...interface{}) error {
	return &invalidPathError{message: fmt.Sprintf(message, arguments...), scimType: "noTarget"}
}

// IsInvalidPathError returns whether an error is an invalid-path error.
func IsInvalidPathError(err error) bool {
	_, ok := err.(*invalidPathError)
	return ok
}

func (e *invalidPathError) Error() string {
	return e.message
}

// mutabilityError errors are raised when an operation targets a readonly or
// otherwise immutable attribute.
type mutabilityError struct {
	message string
}

// NewMutabilityError returns a new mutability-violation error formatted
// like fmt.Errorf.
func NewMutabilityError(message string, arguments ...interface{}) error {
	return &mutabilityError{message: fmt.Sprintf(message, arguments...)}
}

// IsMutabilityError returns whether an error is a mutability-violation error.
func IsMutabilityError(err error) bool {
	_, ok := err.(*mutabilityError)
	return ok
}

func (e *mutabilityError) Error() string {
	return e.message
}
