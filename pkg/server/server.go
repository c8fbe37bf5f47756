package server

import (
	"encoding/json"

	"github.com/scimware/scim-server/pkg/config"
	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/tenant"
)

// Config bundles a Server's construction-time dependencies, mirroring
// provider.Config's shape one layer up.
type Config struct {
	Provider     *provider.Provider
	ServerConfig *config.ServerConfig
	Credentials  *tenant.CredentialStore
	RateLimiter  *tenant.RateLimiter
}

// NewServer builds the façade's static discovery documents
// (ServiceProviderConfig, the schema list) once at construction, so
// GetServerInfo/GetSchemas never touch the registry on the request path.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Provider == nil {
		return nil, errConfigMissing("provider")
	}

	if cfg.ServerConfig == nil {
		return nil, errConfigMissing("server config")
	}

	if cfg.Credentials == nil {
		cfg.Credentials = tenant.NewCredentialStore()
	}

	if cfg.RateLimiter == nil {
		cfg.RateLimiter = tenant.NewRateLimiter(tenant.NewConfigStore())
	}

	resourceTypes := make(map[string]resourceTypeInfo, len(cfg.ServerConfig.ResourceTypeConfigs))
	for _, rt := range cfg.ServerConfig.ResourceTypeConfigs {
		info := resourceTypeInfo{name: rt.Name, plural: rt.Plural}

		if len(rt.AllowedOperations) > 0 {
			info.allowed = make(map[Op]bool, len(rt.AllowedOperations))
			for _, op := range rt.AllowedOperations {
				info.allowed[Op(op)] = true
			}
		}

		resourceTypes[rt.Name] = info
	}

	schemas := make([]map[string]interface{}, 0, len(cfg.ServerConfig.Registry.List()))
	for _, s := range cfg.ServerConfig.Registry.List() {
		schemas = append(schemas, schemaDocument(s))
	}

	srv := &Server{
		provider:              cfg.Provider,
		resourceTypes:         resourceTypes,
		credentials:           cfg.Credentials,
		rateLimiter:           cfg.RateLimiter,
		serviceProviderConfig: serviceProviderConfigDocument(cfg.ServerConfig),
		schemas:               schemas,
	}

	return srv, nil
}

func errConfigMissing(what string) error {
	return &missingConfigError{what: what}
}

type missingConfigError struct{ what string }

func (e *missingConfigError) Error() string {
	return "server: " + e.what + " is required"
}

// serviceProviderConfigDocument renders the static ServiceProviderConfig
// resource (RFC 7643 §5) this deployment advertises: PATCH and ETag
// support are always on (the engine always computes versions and the
// PATCH engine is always wired in); bulk is not implemented and filtering
// is limited to exact-match comparisons.
func serviceProviderConfigDocument(cfg *config.ServerConfig) map[string]interface{} {
	return map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"patch": map[string]interface{}{
			"supported": true,
		},
		"bulk": map[string]interface{}{
			"supported":      false,
			"maxOperations":  0,
			"maxPayloadSize": 0,
		},
		"filter": map[string]interface{}{
			"supported":  true,
			"maxResults": 200,
		},
		"changePassword": map[string]interface{}{
			"supported": false,
		},
		"sort": map[string]interface{}{
			"supported": false,
		},
		"etag": map[string]interface{}{
			"supported": true,
		},
		"authenticationSchemes": []interface{}{},
	}
}

// schemaDocument renders a registered Schema into the bare JSON resource
// shape GetSchemas returns, since the schema package's own type is an
// implementation detail the façade doesn't leak across the Dispatch
// boundary. Round-tripping through encoding/json reuses the same struct
// tags the embedded schema documents were parsed with instead of hand
// listing every field here.
func schemaDocument(s *schema.Schema) map[string]interface{} {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{"id": s.ID, "name": s.Name}
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]interface{}{"id": s.ID, "name": s.Name}
	}

	return doc
}
