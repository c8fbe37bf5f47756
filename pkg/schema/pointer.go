package schema

import (
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// ResolvePath looks up the value a dotted attribute path (the same
// "emails.0.value" shape storage.FindByAttribute's dottedPath takes)
// addresses within a decoded resource, via a go-openapi JSON pointer.
// Used by the Server façade to attach the offending value to a
// validation error's response metadata.
func ResolvePath(resource map[string]interface{}, dottedPath string) (interface{}, bool) {
	if dottedPath == "" {
		return nil, false
	}

	pointer, err := jsonpointer.New(dottedPathToPointer(dottedPath))
	if err != nil {
		return nil, false
	}

	value, _, err := pointer.Get(resource)
	if err != nil {
		return nil, false
	}

	return value, true
}

// dottedPathToPointer renders "emails.0.value" as the JSON Pointer
// "/emails/0/value" jsonpointer.New expects.
func dottedPathToPointer(dottedPath string) string {
	return "/" + strings.ReplaceAll(dottedPath, ".", "/")
}
