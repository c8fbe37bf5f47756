package values

import (
	"testing"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/schema"
)

func TestConstructStringCanonical(t *testing.T) {
	def := &schema.AttributeDefinition{Name: "status", Type: schema.AttrTypeString, CanonicalValues: []string{"Active", "Inactive"}}

	if _, err := Construct(def, "active"); err != nil {
		t.Fatalf("case-insensitive canonical match should succeed: %v", err)
	}

	if _, err := Construct(def, "pending"); err == nil {
		t.Fatalf("expected a canonical-value error")
	}
}

func TestConstructStringCanonicalCaseExact(t *testing.T) {
	def := &schema.AttributeDefinition{Name: "status", Type: schema.AttrTypeString, CaseExact: true, CanonicalValues: []string{"Active"}}

	if _, err := Construct(def, "active"); err == nil {
		t.Fatalf("case-exact canonical mismatch should fail")
	}
}

func TestConstructResourceIDRejectsEmpty(t *testing.T) {
	def := &schema.AttributeDefinition{Name: "id", Type: schema.AttrTypeString}

	if _, err := Construct(def, ""); err == nil {
		t.Fatalf("expected empty id to be rejected")
	}
}

func TestConstructIntegerRejectsFraction(t *testing.T) {
	def := &schema.AttributeDefinition{Name: "count", Type: schema.AttrTypeInteger}

	if _, err := Construct(def, 1.5); err == nil {
		t.Fatalf("expected a fractional value to be rejected")
	}

	v, err := Construct(def, float64(3))
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	iv, ok := v.(*IntegerValue)
	if !ok || iv.Raw != 3 {
		t.Fatalf("expected IntegerValue{3}, got %#v", v)
	}
}

func TestConstructBinaryRejectsInvalidBase64(t *testing.T) {
	def := &schema.AttributeDefinition{Name: "cert", Type: schema.AttrTypeBinary}

	if _, err := Construct(def, "not base64!!"); err == nil {
		t.Fatalf("expected invalid base64 to be rejected")
	}

	if _, err := Construct(def, "aGVsbG8="); err != nil {
		t.Fatalf("expected valid base64 to succeed: %v", err)
	}
}

func emailsDefinition() *schema.AttributeDefinition {
	return &schema.AttributeDefinition{
		Name:        "emails",
		Type:        schema.AttrTypeComplex,
		MultiValued: true,
		SubAttributes: []*schema.AttributeDefinition{
			{Name: "value", Type: schema.AttrTypeString},
			{Name: "type", Type: schema.AttrTypeString, CanonicalValues: []string{"work", "home", "other"}},
			{Name: "primary", Type: schema.AttrTypeBoolean},
		},
	}
}

func TestConstructEmailAddressRejectsMalformed(t *testing.T) {
	def := emailsDefinition()

	_, err := Construct(def, []interface{}{
		map[string]interface{}{"value": "not-an-email", "type": "work"},
	})
	if err == nil {
		t.Fatalf("expected malformed email to be rejected")
	}
}

func TestConstructEmailAddressAcceptsValid(t *testing.T) {
	def := emailsDefinition()

	v, err := Construct(def, []interface{}{
		map[string]interface{}{"value": "bjensen@example.com", "type": "work", "primary": true},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	mv, ok := v.(*MultiValue)
	if !ok || len(mv.Elements()) != 1 {
		t.Fatalf("expected a single-element MultiValue, got %#v", v)
	}

	if _, ok := mv.Elements()[0].(*EmailAddress); !ok {
		t.Fatalf("expected element to construct as EmailAddress, got %T", mv.Elements()[0])
	}
}

func TestConstructMultiValuedRejectsNonArray(t *testing.T) {
	def := emailsDefinition()

	if _, err := Construct(def, "bjensen@example.com"); err == nil {
		t.Fatalf("expected a non-array value for a multi-valued attribute to be rejected")
	}

	if !errors.IsValidationError(errMust(t, def)) {
		t.Fatalf("expected a validation error kind")
	}
}

func errMust(t *testing.T, def *schema.AttributeDefinition) error {
	t.Helper()
	_, err := Construct(def, "bjensen@example.com")
	return err
}

func TestComplexValueRejectsMissingRequiredSubAttribute(t *testing.T) {
	def := &schema.AttributeDefinition{
		Name: "name",
		Type: schema.AttrTypeComplex,
		SubAttributes: []*schema.AttributeDefinition{
			{Name: "givenName", Type: schema.AttrTypeString, Required: true},
		},
	}

	if _, err := Construct(def, map[string]interface{}{"familyName": "Jensen"}); err == nil {
		t.Fatalf("expected missing required sub-attribute to be rejected")
	}
}

func TestComplexValueCarriesUnknownSubAttributeAsExtension(t *testing.T) {
	def := &schema.AttributeDefinition{
		Name: "name",
		Type: schema.AttrTypeComplex,
		SubAttributes: []*schema.AttributeDefinition{
			{Name: "givenName", Type: schema.AttrTypeString},
		},
	}

	v, err := Construct(def, map[string]interface{}{"givenName": "Babs", "nickname": "Babs the Great"})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	cv := v.(*ComplexValue)
	if _, ok := cv.Fields["nickname"].(*ExtensionValue); !ok {
		t.Fatalf("expected unknown sub-attribute to be carried as an ExtensionValue")
	}
}

func TestMultiValueAsJSONRoundTrips(t *testing.T) {
	def := emailsDefinition()

	raw := []interface{}{
		map[string]interface{}{"value": "bjensen@example.com", "type": "work", "primary": true},
	}

	v, err := Construct(def, raw)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	out, ok := v.AsJSON().([]interface{})
	if !ok || len(out) != 1 {
		t.Fatalf("expected a one-element slice, got %#v", v.AsJSON())
	}
}
