package values

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/schema"
)

// baseValue factors the AttributeName/AttributeType bookkeeping every
// concrete kind needs.
type baseValue struct {
	name    string
	attType schema.AttrType
}

func (b baseValue) AttributeName() string          { return b.name }
func (b baseValue) AttributeType() schema.AttrType { return b.attType }

// StringValue wraps a plain SCIM string attribute.
type StringValue struct {
	baseValue
	Raw string
}

func (v *StringValue) AsJSON() interface{} { return v.Raw }

func (v *StringValue) ValidateAgainstSchema(def *schema.AttributeDefinition) error {
	return validateCanonical(def, v.Raw)
}

func constructString(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	s, err := requireString(raw, def.Name)
	if err != nil {
		return nil, err
	}

	v := &StringValue{baseValue: baseValue{def.Name, def.Type}, Raw: s}
	if err := v.ValidateAgainstSchema(def); err != nil {
		return nil, err
	}

	return v, nil
}

// BooleanValue wraps a SCIM boolean attribute.
type BooleanValue struct {
	baseValue
	Raw bool
}

func (v *BooleanValue) AsJSON() interface{} { return v.Raw }

func (v *BooleanValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructBoolean(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	b, ok := raw.(bool)
	if !ok {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected a boolean value")
	}

	return &BooleanValue{baseValue: baseValue{def.Name, def.Type}, Raw: b}, nil
}

// DecimalValue wraps a SCIM decimal attribute.
type DecimalValue struct {
	baseValue
	Raw float64
}

func (v *DecimalValue) AsJSON() interface{} { return v.Raw }

func (v *DecimalValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructDecimal(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	f, ok := raw.(float64)
	if !ok {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected a decimal value")
	}

	return &DecimalValue{baseValue: baseValue{def.Name, def.Type}, Raw: f}, nil
}

// IntegerValue wraps a SCIM integer attribute. JSON numbers decode to
// float64; the constructor rejects non-integral values.
type IntegerValue struct {
	baseValue
	Raw int64
}

func (v *IntegerValue) AsJSON() interface{} { return v.Raw }

func (v *IntegerValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructInteger(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	f, ok := raw.(float64)
	if !ok {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected an integer value")
	}

	if f != float64(int64(f)) {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected an integer value, got a fraction")
	}

	return &IntegerValue{baseValue: baseValue{def.Name, def.Type}, Raw: int64(f)}, nil
}

// DateTimeValue wraps a SCIM dateTime attribute (RFC 3339 string on the
// wire; format conformance is enforced by go-openapi's structural pass,
// this layer carries the raw string through).
type DateTimeValue struct {
	baseValue
	Raw string
}

func (v *DateTimeValue) AsJSON() interface{} { return v.Raw }

func (v *DateTimeValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructDateTime(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	s, err := requireString(raw, def.Name)
	if err != nil {
		return nil, err
	}

	return &DateTimeValue{baseValue: baseValue{def.Name, def.Type}, Raw: s}, nil
}

// ReferenceValue wraps a SCIM reference (URI) attribute.
type ReferenceValue struct {
	baseValue
	Raw string
}

func (v *ReferenceValue) AsJSON() interface{} { return v.Raw }

func (v *ReferenceValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructReference(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	s, err := requireString(raw, def.Name)
	if err != nil {
		return nil, err
	}

	return &ReferenceValue{baseValue: baseValue{def.Name, def.Type}, Raw: s}, nil
}

// BinaryValue wraps a SCIM binary attribute, base64-encoded on the wire
// and carried through as the raw encoded string.
type BinaryValue struct {
	baseValue
	Raw string
}

func (v *BinaryValue) AsJSON() interface{} { return v.Raw }

func (v *BinaryValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructBinary(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	s, err := requireString(raw, def.Name)
	if err != nil {
		return nil, err
	}

	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected base64-encoded binary data: %v", err)
	}

	return &BinaryValue{baseValue: baseValue{def.Name, def.Type}, Raw: s}, nil
}

// ComplexValue wraps a nested object attribute recursively as a map of
// child Values.
type ComplexValue struct {
	baseValue
	Fields map[string]Value
}

func (v *ComplexValue) AsJSON() interface{} {
	out := make(map[string]interface{}, len(v.Fields))
	for k, f := range v.Fields {
		out[k] = f.AsJSON()
	}

	return out
}

func (v *ComplexValue) ValidateAgainstSchema(def *schema.AttributeDefinition) error {
	for _, sub := range def.SubAttributes {
		if sub.Required {
			if _, ok := v.Fields[sub.Name]; !ok {
				return errors.NewValidationErrorWithPath(def.Name+"."+sub.Name, "required sub-attribute missing")
			}
		}
	}

	return nil
}

func constructComplex(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.NewValidationErrorWithPath(def.Name, "expected an object value")
	}

	fields := make(map[string]Value, len(m))

	for key, rawValue := range m {
		sub := def.SubAttribute(key)
		if sub == nil {
			// Unknown sub-attributes are carried through as extensions
			// rather than rejected, matching the schema validator's
			// tolerance of additional properties.
			fields[key] = &ExtensionValue{baseValue: baseValue{key, ""}, Raw: rawValue}
			continue
		}

		v, err := Construct(sub, rawValue)
		if err != nil {
			return nil, err
		}

		fields[key] = v
	}

	cv := &ComplexValue{baseValue: baseValue{def.Name, def.Type}, Fields: fields}
	if err := cv.ValidateAgainstSchema(def); err != nil {
		return nil, err
	}

	return cv, nil
}

// ExtensionValue carries an attribute this layer has no specific kind for
// (typically an unrecognized sub-attribute, or an entire schema extension
// namespace not yet registered).
type ExtensionValue struct {
	baseValue
	SchemaURI string
	Raw       interface{}
}

func (v *ExtensionValue) AsJSON() interface{} { return v.Raw }

func (v *ExtensionValue) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructExtension(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	return &ExtensionValue{baseValue: baseValue{def.Name, def.Type}, Raw: raw}, nil
}

// ResourceId wraps the "id" attribute and enforces non-emptiness.
type ResourceId struct {
	baseValue
	Raw string
}

func (v *ResourceId) AsJSON() interface{} { return v.Raw }

func (v *ResourceId) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructResourceID(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	s, err := requireString(raw, def.Name)
	if err != nil {
		return nil, err
	}

	if s == "" {
		return nil, errors.NewValidationErrorWithPath(def.Name, "id must not be empty")
	}

	return &ResourceId{baseValue: baseValue{def.Name, def.Type}, Raw: s}, nil
}

// emailPattern is a pragmatic local@domain check; the full RFC 5322
// grammar is far larger than any one SCIM deployment needs.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)

// EmailAddress wraps one element of a "emails" multi-valued attribute and
// validates its "value" sub-attribute looks like an email address.
type EmailAddress struct {
	baseValue
	Fields map[string]Value
}

func (v *EmailAddress) AsJSON() interface{} {
	out := make(map[string]interface{}, len(v.Fields))
	for k, f := range v.Fields {
		out[k] = f.AsJSON()
	}

	return out
}

func (v *EmailAddress) ValidateAgainstSchema(def *schema.AttributeDefinition) error {
	value, ok := v.Fields["value"]
	if !ok {
		return nil
	}

	sv, ok := value.(*StringValue)
	if !ok || !emailPattern.MatchString(sv.Raw) {
		return errors.NewValidationErrorWithPath(def.Name+".value", "must be a valid email address")
	}

	return nil
}

func constructEmailAddress(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	complex, err := constructComplex(def, raw)
	if err != nil {
		return nil, err
	}

	cv := complex.(*ComplexValue)
	v := &EmailAddress{baseValue: cv.baseValue, Fields: cv.Fields}

	if err := v.ValidateAgainstSchema(def); err != nil {
		return nil, err
	}

	return v, nil
}

// PhoneNumber wraps one element of a "phoneNumbers" multi-valued
// attribute. RFC 7643 doesn't mandate a specific phone number grammar, so
// this kind has no extra invariant beyond what the complex constructor
// already enforces.
type PhoneNumber struct {
	baseValue
	Fields map[string]Value
}

func (v *PhoneNumber) AsJSON() interface{} {
	out := make(map[string]interface{}, len(v.Fields))
	for k, f := range v.Fields {
		out[k] = f.AsJSON()
	}

	return out
}

func (v *PhoneNumber) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructPhoneNumber(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	complex, err := constructComplex(def, raw)
	if err != nil {
		return nil, err
	}

	cv := complex.(*ComplexValue)

	return &PhoneNumber{baseValue: cv.baseValue, Fields: cv.Fields}, nil
}

// Name wraps the "name" complex attribute with no invariant beyond its
// sub-attribute validation; it exists as a named kind so higher layers
// (composite name-consistency policy hooks) can type-assert on it.
type Name struct {
	baseValue
	Fields map[string]Value
}

func (v *Name) AsJSON() interface{} {
	out := make(map[string]interface{}, len(v.Fields))
	for k, f := range v.Fields {
		out[k] = f.AsJSON()
	}

	return out
}

func (v *Name) ValidateAgainstSchema(*schema.AttributeDefinition) error { return nil }

func constructName(def *schema.AttributeDefinition, raw interface{}) (Value, error) {
	complex, err := constructComplex(def, raw)
	if err != nil {
		return nil, err
	}

	cv := complex.(*ComplexValue)

	return &Name{baseValue: cv.baseValue, Fields: cv.Fields}, nil
}

// MultiValue wraps a multi-valued attribute as a slice of its element
// Values, each constructed against a singular copy of the attribute
// definition.
type MultiValue struct {
	baseValue
	Items []Value
}

// Elements returns the wrapped element values.
func (v *MultiValue) Elements() []Value { return v.Items }

func (v *MultiValue) AsJSON() interface{} {
	out := make([]interface{}, len(v.Items))
	for i, item := range v.Items {
		out[i] = item.AsJSON()
	}

	return out
}

func (v *MultiValue) ValidateAgainstSchema(def *schema.AttributeDefinition) error {
	singular := *def
	singular.MultiValued = false

	for _, item := range v.Items {
		if err := item.ValidateAgainstSchema(&singular); err != nil {
			return err
		}
	}

	return nil
}

func validateCanonical(def *schema.AttributeDefinition, value string) error {
	if len(def.CanonicalValues) == 0 {
		return nil
	}

	for _, c := range def.CanonicalValues {
		if c == value || (!def.CaseExact && strings.EqualFold(c, value)) {
			return nil
		}
	}

	return errors.NewValidationErrorWithPath(def.Name, "%q is not a canonical value", value)
}
