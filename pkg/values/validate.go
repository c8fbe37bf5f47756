package values

import (
	"strings"

	"github.com/scimware/scim-server/pkg/schema"
)

// BuildResource constructs a Resource from every top-level attribute of attrs
// present in data (writeOnly attributes are skipped), via Construct,
// short-circuiting on the first attribute whose per-value invariants fail
// (email shape, canonical values, non-empty id, and so on). Unique-primary
// and the policy hooks such as name consistency are not checked here; they
// run on the result in PolicyRegistry.Validate. It is the entry point callers above the schema
// package use to run the value object layer's invariants after the
// structural go-openapi pass has already accepted the document, since
// pkg/values itself depends on pkg/schema and so cannot be invoked from
// within it without an import cycle.
func BuildResource(attrs []*schema.AttributeDefinition, data map[string]interface{}) (Resource, error) {
	r := make(Resource, len(attrs))

	for _, a := range attrs {
		raw, present := lookupCaseInsensitive(data, a.Name)
		if !present || a.Mutability == schema.MutabilityWriteOnly {
			continue
		}

		v, err := Construct(a, raw)
		if err != nil {
			return nil, err
		}

		r[a.Name] = v
	}

	return r, nil
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
