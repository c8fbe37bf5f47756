// Package schema loads and exposes the SCIM attribute schemas (User, Group,
// ServiceProviderConfig and the Enterprise User extension) that the value
// object layer and PATCH engine validate resources against.
package schema

import "strings"

// AttrType is the SCIM attribute data type (RFC 7643 §2.2).
type AttrType string

const (
	AttrTypeString    AttrType = "string"
	AttrTypeBoolean   AttrType = "boolean"
	AttrTypeDecimal   AttrType = "decimal"
	AttrTypeInteger   AttrType = "integer"
	AttrTypeDateTime  AttrType = "dateTime"
	AttrTypeBinary    AttrType = "binary"
	AttrTypeReference AttrType = "reference"
	AttrTypeComplex   AttrType = "complex"
)

// Mutability describes whether and how an attribute's value may change.
type Mutability string

const (
	MutabilityReadWrite Mutability = "readWrite"
	MutabilityReadOnly  Mutability = "readOnly"
	MutabilityImmutable Mutability = "immutable"
	MutabilityWriteOnly Mutability = "writeOnly"
)

// Uniqueness describes the uniqueness constraint applied to an attribute's
// value.
type Uniqueness string

const (
	UniquenessNone   Uniqueness = "none"
	UniquenessServer Uniqueness = "server"
	UniquenessGlobal Uniqueness = "global"
)

// Returned describes when an attribute is included in a resource
// representation returned to a client.
type Returned string

const (
	ReturnedAlways  Returned = "always"
	ReturnedNever   Returned = "never"
	ReturnedDefault Returned = "default"
	ReturnedRequest Returned = "request"
)

// AttributeDefinition is one attribute (or sub-attribute) of a Schema, as
// defined by RFC 7643 §2.2 and §7.
type AttributeDefinition struct {
	Name            string                 `json:"name"`
	Type            AttrType               `json:"type"`
	MultiValued     bool                   `json:"multiValued"`
	Required        bool                   `json:"required"`
	CaseExact       bool                   `json:"caseExact"`
	Mutability      Mutability             `json:"mutability"`
	Returned        Returned               `json:"returned"`
	Uniqueness      Uniqueness             `json:"uniqueness"`
	CanonicalValues []string               `json:"canonicalValues,omitempty"`
	SubAttributes   []*AttributeDefinition `json:"subAttributes,omitempty"`
}

// Schema is a full SCIM schema document: a URN identifier and its top-level
// attribute definitions.
type Schema struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Attributes  []*AttributeDefinition `json:"attributes"`
}

// Attribute looks up a direct child attribute definition by name,
// case-insensitively as required by RFC 7643 §2.1.
func (s *Schema) Attribute(name string) *AttributeDefinition {
	return findAttribute(s.Attributes, name)
}

// SubAttribute looks up a sub-attribute of this definition by name,
// case-insensitively.
func (a *AttributeDefinition) SubAttribute(name string) *AttributeDefinition {
	return findAttribute(a.SubAttributes, name)
}

func findAttribute(attrs []*AttributeDefinition, name string) *AttributeDefinition {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}
