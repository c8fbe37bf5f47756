package schema

import "github.com/go-openapi/spec"

// OpenAPISchema converts an AttributeDefinition tree into a go-openapi
// *spec.Schema, the shape validate.AgainstSchema expects for the structural
// first pass (required attributes and JSON type conformance) done before
// the SCIM-specific mutability and uniqueness passes run.
func (a *AttributeDefinition) OpenAPISchema() *spec.Schema {
	s := &spec.Schema{}

	switch a.Type {
	case AttrTypeDateTime:
		// "date-time" is one of strfmt's built-in formats and already
		// validates RFC 3339, which is what SCIM's dateTime attributes
		// require (RFC 7643 §2.3.5) - no custom format registration needed.
		s.Typed("string", "date-time")
	case AttrTypeString, AttrTypeReference, AttrTypeBinary:
		s.Typed("string", "")
	case AttrTypeBoolean:
		s.Typed("boolean", "")
	case AttrTypeDecimal:
		s.Typed("number", "")
	case AttrTypeInteger:
		s.Typed("integer", "")
	case AttrTypeComplex:
		s.Typed("object", "")
		s.Properties = make(map[string]spec.Schema, len(a.SubAttributes))

		var required []string

		for _, sub := range a.SubAttributes {
			s.Properties[sub.Name] = *sub.OpenAPISchema()
			if sub.Required {
				required = append(required, sub.Name)
			}
		}

		s.Required = required
	}

	// Canonical values are deliberately not expressed as an openapi enum:
	// enum matching is case-sensitive, while SCIM canonical values match
	// case-insensitively unless the attribute is caseExact. The validator
	// enforces them in its own pass instead.

	if a.MultiValued {
		item := s
		s = &spec.Schema{}
		s.Typed("array", "")
		s.Items = &spec.SchemaOrArray{Schema: item}
	}

	return s
}

// OpenAPISchema converts the whole schema into a go-openapi object schema
// keyed by attribute name, for validating a top-level resource document.
func (s *Schema) OpenAPISchema() *spec.Schema {
	out := &spec.Schema{}
	out.Typed("object", "")
	out.Properties = make(map[string]spec.Schema, len(s.Attributes))

	var required []string

	for _, a := range s.Attributes {
		out.Properties[a.Name] = *a.OpenAPISchema()
		if a.Required {
			required = append(required, a.Name)
		}
	}

	out.Required = required

	return out
}
