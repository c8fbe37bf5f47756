package schema

import (
	"fmt"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/log"

	"github.com/go-openapi/spec"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
	"github.com/golang/glog"
)

// Operation is the kind of write being validated, since mutability rules
// depend on whether a value is being created for the first time or
// replaced.
type Operation int

const (
	// OperationCreate validates a resource being created: immutable
	// attributes may be set for the first time.
	OperationCreate Operation = iota

	// OperationReplace validates a resource being replaced wholesale (PUT):
	// immutable attributes may not change value once set.
	OperationReplace

	// OperationUpdate validates a resource being partially updated (the
	// result of applying a PATCH document): subject to the same
	// immutability rules as OperationReplace.
	OperationUpdate

	// OperationQuery validates a resource representation being read back
	// (e.g. for a find_by_attribute probe's shape): no attribute is
	// mandatory.
	OperationQuery
)

// commonAttributes are the protocol-level attributes every resource may
// carry regardless of what its schema declares (RFC 7643 §3.1).
var commonAttributes = []string{"schemas", "id", "externalId", "meta"}

// Validate runs the structural go-openapi pass (JSON type conformance,
// required attributes) and then the SCIM-specific passes go-openapi has no
// notion of: unknown-attribute rejection, canonical values, mutability and
// multi-valued primary uniqueness. extensions are the schemas whose URNs
// may appear as namespaced top-level objects; previous is the resource's
// current stored representation, or nil on create.
func (r *Registry) Validate(s *Schema, extensions []*Schema, resource map[string]interface{}, previous map[string]interface{}, op Operation) error {
	glog.V(log.LevelTrace).Infof("validating resource against schema %s", s.ID)

	if err := structuralPass(s, resource, op); err != nil {
		return err
	}

	if err := checkDeclaredAttributes(s, extensions, resource); err != nil {
		return err
	}

	if err := validateAttributes(s.Attributes, resource, previous, op, ""); err != nil {
		return err
	}

	for _, ext := range extensions {
		nested, ok := resource[ext.ID].(map[string]interface{})
		if !ok {
			continue
		}

		var previousNested map[string]interface{}
		if previous != nil {
			previousNested, _ = previous[ext.ID].(map[string]interface{})
		}

		// Extension attributes are only mandatory when their namespace is
		// present at all, so the structural pass runs in Query mode's
		// required-free shape only when the outer operation does.
		if err := structuralPass(ext, nested, op); err != nil {
			return err
		}

		if err := validateAttributes(ext.Attributes, nested, previousNested, op, ext.ID); err != nil {
			return err
		}
	}

	return nil
}

func structuralPass(s *Schema, resource map[string]interface{}, op Operation) error {
	openAPISchema := s.OpenAPISchema()
	if op == OperationQuery {
		clearRequired(openAPISchema)
	}

	if err := validate.AgainstSchema(openAPISchema, resource, strfmt.NewFormats()); err != nil {
		return errors.NewValidationError("schema validation failed: %v", err)
	}

	return nil
}

// checkDeclaredAttributes rejects any top-level attribute that is neither a
// common protocol attribute, nor declared by the base schema, nor the URN
// namespace of an active extension schema.
func checkDeclaredAttributes(s *Schema, extensions []*Schema, resource map[string]interface{}) error {
	for key, value := range resource {
		if isCommonAttribute(key) || s.Attribute(key) != nil {
			continue
		}

		ext := extensionForURN(extensions, key)
		if ext == nil {
			return errors.NewValidationErrorWithPath(key, "attribute %q is not declared in any active schema", key)
		}

		if _, ok := value.(map[string]interface{}); !ok {
			return errors.NewValidationErrorWithPath(key, "extension namespace %q must be an object", key)
		}
	}

	return nil
}

func isCommonAttribute(name string) bool {
	for _, c := range commonAttributes {
		if strings.EqualFold(c, name) {
			return true
		}
	}

	return false
}

func extensionForURN(extensions []*Schema, urn string) *Schema {
	for _, ext := range extensions {
		if ext.ID == urn {
			return ext
		}
	}

	return nil
}

func validateAttributes(attrs []*AttributeDefinition, resource, previous map[string]interface{}, op Operation, pathPrefix string) error {
	for _, a := range attrs {
		value, present := lookupCaseInsensitive(resource, a.Name)
		if !present {
			continue
		}

		path := a.Name
		if pathPrefix != "" {
			path = pathPrefix + "." + a.Name
		}

		if (op == OperationReplace || op == OperationUpdate) && a.Mutability == MutabilityImmutable {
			if prevValue, hadPrevious := lookupCaseInsensitive(previous, a.Name); hadPrevious {
				if !valuesEqual(prevValue, value) {
					return errors.NewValidationErrorWithPath(path, "attribute %q is immutable", a.Name)
				}
			}
		}

		if a.Mutability == MutabilityWriteOnly {
			continue
		}

		if err := validateAttributeValue(a, value, op, path); err != nil {
			return err
		}
	}

	return nil
}

func validateAttributeValue(a *AttributeDefinition, value interface{}, op Operation, path string) error {
	if a.MultiValued {
		items, ok := value.([]interface{})
		if !ok {
			return errors.NewValidationErrorWithPath(path, "attribute %q must be an array", a.Name)
		}

		if a.Type == AttrTypeComplex && hasSubAttribute(a, "primary") {
			if err := validatePrimaryUniqueness(items, path); err != nil {
				return err
			}
		}

		for i, item := range items {
			itemPath := fmt.Sprintf("%s.%d", path, i)
			if a.Type == AttrTypeComplex {
				complexValue, ok := item.(map[string]interface{})
				if !ok {
					return errors.NewValidationErrorWithPath(itemPath, "element must be an object")
				}

				if err := validateAttributes(a.SubAttributes, complexValue, nil, op, itemPath); err != nil {
					return err
				}

				continue
			}

			if err := validateCanonicalValue(a, item, itemPath); err != nil {
				return err
			}
		}

		return nil
	}

	if a.Type == AttrTypeComplex {
		complexValue, ok := value.(map[string]interface{})
		if !ok {
			return errors.NewValidationErrorWithPath(path, "attribute %q must be an object", a.Name)
		}

		return validateAttributes(a.SubAttributes, complexValue, nil, op, path)
	}

	return validateCanonicalValue(a, value, path)
}

// validateCanonicalValue enforces an attribute's canonical value set,
// matching case-insensitively unless the attribute is caseExact (RFC 7643
// §2.2, §7).
func validateCanonicalValue(a *AttributeDefinition, value interface{}, path string) error {
	if len(a.CanonicalValues) == 0 {
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return nil
	}

	for _, canonical := range a.CanonicalValues {
		if canonical == str || (!a.CaseExact && strings.EqualFold(canonical, str)) {
			return nil
		}
	}

	return errors.NewValidationErrorWithPath(path, "%q is not one of the canonical values for %q", str, a.Name)
}

// validatePrimaryUniqueness enforces that at most one element of a
// multi-valued complex attribute has primary set to true (RFC 7643 §2.4).
func validatePrimaryUniqueness(items []interface{}, path string) error {
	seen := false

	for _, item := range items {
		complexValue, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		primary, ok := lookupCaseInsensitive(complexValue, "primary")
		if !ok {
			continue
		}

		isPrimary, ok := primary.(bool)
		if !ok || !isPrimary {
			continue
		}

		if seen {
			return errors.NewValidationErrorWithPath(path, "only one element may have primary set to true")
		}

		seen = true
	}

	return nil
}

// clearRequired strips required-attribute enforcement throughout an
// openapi schema tree, for the Query operation context.
func clearRequired(s *spec.Schema) {
	s.Required = nil

	for name, prop := range s.Properties {
		p := prop
		clearRequired(&p)
		s.Properties[name] = p
	}

	if s.Items != nil && s.Items.Schema != nil {
		clearRequired(s.Items.Schema)
	}
}

func hasSubAttribute(a *AttributeDefinition, name string) bool {
	return a.SubAttribute(name) != nil
}

func lookupCaseInsensitive(m map[string]interface{}, key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}

	if v, ok := m[key]; ok {
		return v, true
	}

	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}

	return nil, false
}

func valuesEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
