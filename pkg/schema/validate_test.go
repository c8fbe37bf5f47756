package schema

import "testing"

func TestValidateMinimalUser(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"userName": "bjensen",
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMissingRequiredAttribute(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"displayName": "Barbara Jensen",
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for missing userName")
	}
}

func TestValidateWrongAttributeType(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"userName": "bjensen",
		"active":   "not-a-boolean",
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for wrong type on active")
	}
}

func TestValidatePrimaryUniqueness(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"userName": "bjensen",
		"emails": []interface{}{
			map[string]interface{}{"value": "a@example.com", "primary": true},
			map[string]interface{}{"value": "b@example.com", "primary": true},
		},
	}

	err := r.Validate(userSchema, nil, resource, nil, OperationCreate)
	if err == nil {
		t.Fatal("expected error for two primary emails")
	}
}

func immutableFieldSchema() *Schema {
	return &Schema{
		ID:   "urn:test:Immutable",
		Name: "Immutable",
		Attributes: []*AttributeDefinition{
			{Name: "externalId", Type: AttrTypeString, Mutability: MutabilityImmutable},
		},
	}
}

func TestValidateImmutableUnchangedPasses(t *testing.T) {
	r := mustRegistry(t)
	s := immutableFieldSchema()

	previous := map[string]interface{}{"externalId": "ext-1"}
	resource := map[string]interface{}{"externalId": "ext-1"}

	if err := r.Validate(s, nil, resource, previous, OperationReplace); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateImmutableChangedFails(t *testing.T) {
	r := mustRegistry(t)
	s := immutableFieldSchema()

	previous := map[string]interface{}{"externalId": "ext-1"}
	resource := map[string]interface{}{"externalId": "ext-2"}

	if err := r.Validate(s, nil, resource, previous, OperationReplace); err == nil {
		t.Fatal("expected error for changed immutable attribute")
	}
}

func TestValidateImmutableFirstSetOnCreatePasses(t *testing.T) {
	r := mustRegistry(t)
	s := immutableFieldSchema()

	resource := map[string]interface{}{"externalId": "ext-1"}

	if err := r.Validate(s, nil, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateEnterpriseExtension(t *testing.T) {
	r := mustRegistry(t)
	ext, err := r.Get(URNEnterpriseUser)
	if err != nil {
		t.Fatalf("Get(URNEnterpriseUser): %v", err)
	}

	resource := map[string]interface{}{
		"employeeNumber": "701984",
		"manager": map[string]interface{}{
			"value": "26118915-6090-4610-87e4-49d8ca9f808d",
		},
	}

	if err := r.Validate(ext, nil, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUndeclaredAttribute(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"userName":    "bjensen",
		"favoriteDog": "rex",
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for an undeclared attribute")
	}
}

func TestValidateAllowsCommonAttributes(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"schemas":  []interface{}{URNUser},
		"userName": "bjensen",
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCanonicalValueCaseInsensitive(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)

	resource := map[string]interface{}{
		"userName": "bjensen",
		"emails": []interface{}{
			map[string]interface{}{"value": "a@example.com", "type": "WORK"},
		},
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error for a case-insensitive canonical match: %v", err)
	}

	resource["emails"] = []interface{}{
		map[string]interface{}{"value": "a@example.com", "type": "carrier-pigeon"},
	}

	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for a non-canonical type value")
	}
}

func TestValidateExtensionNamespace(t *testing.T) {
	r := mustRegistry(t)
	userSchema, _ := r.Get(URNUser)
	ext, _ := r.Get(URNEnterpriseUser)

	resource := map[string]interface{}{
		"userName": "bjensen",
		URNEnterpriseUser: map[string]interface{}{
			"employeeNumber": "701984",
		},
	}

	if err := r.Validate(userSchema, []*Schema{ext}, resource, nil, OperationCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The same namespace without the extension registered is undeclared.
	if err := r.Validate(userSchema, nil, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for an unregistered extension namespace")
	}

	resource[URNEnterpriseUser] = map[string]interface{}{
		"employeeNumber": 701984,
	}

	if err := r.Validate(userSchema, []*Schema{ext}, resource, nil, OperationCreate); err == nil {
		t.Fatal("expected error for a mistyped extension attribute")
	}
}
