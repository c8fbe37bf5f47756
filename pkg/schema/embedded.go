package schema

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed embedded/*.json
var embeddedFS embed.FS

// Well-known schema URNs (RFC 7643 §8, plus the enterprise extension).
const (
	URNUser                  = "urn:ietf:params:scim:schemas:core:2.0:User"
	URNGroup                 = "urn:ietf:params:scim:schemas:core:2.0:Group"
	URNServiceProviderConfig = "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"
	URNEnterpriseUser        = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"
)

var embeddedFiles = []string{
	"embedded/user.json",
	"embedded/group.json",
	"embedded/serviceproviderconfig.json",
	"embedded/enterprise_user.json",
}

// loadEmbedded parses every bundled schema document out of embeddedFS.
func loadEmbedded() (map[string]*Schema, error) {
	schemas := make(map[string]*Schema, len(embeddedFiles))

	for _, name := range embeddedFiles {
		data, err := embeddedFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded schema %s: %w", name, err)
		}

		s := &Schema{}
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("unmarshalling embedded schema %s: %w", name, err)
		}

		schemas[s.ID] = s
	}

	return schemas, nil
}
