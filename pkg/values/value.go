// Package values implements the value object layer: typed wrappers built
// from an attribute definition and a raw JSON value, enforcing the
// per-attribute invariants the schema registry's structural pass doesn't
// express (email shape, non-empty identifiers, name consistency, and so
// on).
package values

import (
	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/schema"
)

// Value is a validated, typed representation of one attribute's data.
type Value interface {
	// AttributeName is the name of the attribute this value was
	// constructed for.
	AttributeName() string

	// AttributeType is the schema type this value was constructed for.
	AttributeType() schema.AttrType

	// AsJSON renders the value back to a plain JSON-compatible value
	// (string, bool, float64, int64, map[string]interface{}, []interface{}).
	AsJSON() interface{}

	// ValidateAgainstSchema re-checks the value against its attribute
	// definition, for values that were constructed once and mutated
	// afterwards (composite builders).
	ValidateAgainstSchema(def *schema.AttributeDefinition) error
}

// constructor builds a Value from a definition and raw JSON data, or
// returns an error if the data doesn't satisfy the constructor's
// invariants.
type constructor func(def *schema.AttributeDefinition, raw interface{}) (Value, error)

// candidate pairs a constructor with the predicate that decides whether it
// applies to a given attribute definition.
type candidate struct {
	name         string
	canConstruct func(def *schema.AttributeDefinition) bool
	construct    constructor
}

// registry is the ordered (predicate, constructor) list the factory walks,
// highest priority first. Named composites with extra invariants are
// listed ahead of the generic kinds they would otherwise be indistinguishable
// from.
var registry []candidate

func init() {
	registry = []candidate{
		{"ResourceId", isResourceID, constructResourceID},
		{"EmailAddress", isEmailAddress, constructEmailAddress},
		{"PhoneNumber", isPhoneNumber, constructPhoneNumber},
		{"Name", isName, constructName},
		{"String", isKind(schema.AttrTypeString), constructString},
		{"Boolean", isKind(schema.AttrTypeBoolean), constructBoolean},
		{"Decimal", isKind(schema.AttrTypeDecimal), constructDecimal},
		{"Integer", isKind(schema.AttrTypeInteger), constructInteger},
		{"DateTime", isKind(schema.AttrTypeDateTime), constructDateTime},
		{"Binary", isKind(schema.AttrTypeBinary), constructBinary},
		{"Reference", isKind(schema.AttrTypeReference), constructReference},
		{"Complex", isKind(schema.AttrTypeComplex), constructComplex},
	}
}

// Construct dispatches (definition, raw value) to the highest-priority
// constructor whose predicate is satisfied, falling back to an Extension
// value if none apply. Multi-valued attributes are wrapped in a
// MultiValue whose elements are each constructed against a singular copy
// of the definition.
func Construct(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	if def.MultiValued {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, errors.NewValidationErrorWithPath(def.Name, "expected an array value")
		}

		singular := *def
		singular.MultiValued = false

		elements := make([]Value, len(items))

		for i, item := range items {
			v, err := constructSingular(&singular, item)
			if err != nil {
				return nil, err
			}

			elements[i] = v
		}

		return &MultiValue{baseValue: baseValue{def.Name, def.Type}, Items: elements}, nil
	}

	return constructSingular(def, raw)
}

func constructSingular(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	for _, c := range registry {
		if c.canConstruct(def) {
			return c.construct(def, raw)
		}
	}

	return constructExtension(def, raw)
}

func isKind(t schema.AttrType) func(*schema.AttributeDefinition) bool {
	return func(def *schema.AttributeDefinition) bool {
		return def.Type == t
	}
}

func isResourceID(def *schema.AttributeDefinition) bool {
	return def.Name == "id" && def.Type == schema.AttrTypeString
}

func isEmailAddress(def *schema.AttributeDefinition) bool {
	return def.Name == "emails" && def.Type == schema.AttrTypeComplex
}

func isPhoneNumber(def *schema.AttributeDefinition) bool {
	return def.Name == "phoneNumbers"
}

func isName(def *schema.AttributeDefinition) bool {
	return def.Name == "name" && def.Type == schema.AttrTypeComplex
}

func requireString(raw interface{}, attrName string) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", errors.NewValidationErrorWithPath(attrName, "expected a string value")
	}

	return s, nil
}
