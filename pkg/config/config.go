// Package config holds the process-wide server configuration: the set of
// resource types the Resource Provider serves, the base URL and tenant
// strategy used for meta.location generation, and each tenant's default
// ScimConfiguration. Configuration is assembled from flags and extension
// files once at startup, installed with Configure, and read under a
// shared lock for the lifetime of the process.
package config

import (
	"fmt"
	"sync"

	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/tenant"
)

// ResourceTypeConfig describes one resource type a Builder will register
// with the Resource Provider: its name, schema URN, any active extension
// URNs, the plural URL segment used in meta.location, and the set of
// operations the façade permits against it. AllowedOperations
// holds server.Op values as plain strings so this package, which the
// server package imports, never has to import server back; an empty set
// means "every operation is allowed", the common case for a fully CRUD
// resource type.
type ResourceTypeConfig struct {
	Name              string
	Plural            string
	SchemaURN         string
	Extensions        []string
	AllowedOperations []string
}

// ServerConfig is the fully validated, immutable configuration a Server is
// built from.
type ServerConfig struct {
	BaseURL             string
	ScimVersion         string
	Strategy            tenant.Strategy
	ResourceTypeConfigs []ResourceTypeConfig

	// DefaultTenantConfig seeds the ConfigStore every tenant falls back
	// to until it is given its own ScimConfiguration.
	DefaultTenantConfig *tenant.ScimConfiguration

	Registry *schema.Registry
}

// Builder constructs a ServerConfig fluently, validating everything only
// once, at Build time.
type Builder struct {
	cfg ServerConfig
	err error
}

// NewBuilder returns a Builder seeded with the given schema registry,
// which must already carry the core schemas (schema.NewRegistry) plus any
// extension schemas loaded via Registry.LoadExtensionFile.
func NewBuilder(registry *schema.Registry) *Builder {
	return &Builder{cfg: ServerConfig{Registry: registry, ScimVersion: "v2"}}
}

// BaseURL sets the base URL every meta.location is built against.
func (b *Builder) BaseURL(url string) *Builder {
	b.cfg.BaseURL = url
	return b
}

// ScimVersion overrides the default "v2" path segment.
func (b *Builder) ScimVersion(version string) *Builder {
	b.cfg.ScimVersion = version
	return b
}

// TenantStrategy sets the URL-generation strategy.
func (b *Builder) TenantStrategy(strategy tenant.Strategy) *Builder {
	b.cfg.Strategy = strategy
	return b
}

// ResourceType registers a resource type the server will expose. The
// schema URN must already be present in the Builder's registry.
func (b *Builder) ResourceType(rt ResourceTypeConfig) *Builder {
	b.cfg.ResourceTypeConfigs = append(b.cfg.ResourceTypeConfigs, rt)
	return b
}

// DefaultTenantConfig sets the fallback tenant configuration.
func (b *Builder) DefaultTenantConfig(cfg *tenant.ScimConfiguration) *Builder {
	b.cfg.DefaultTenantConfig = cfg
	return b
}

// Build validates the accumulated configuration and returns it, or the
// first validation error encountered.
func (b *Builder) Build() (*ServerConfig, error) {
	if b.cfg.Registry == nil {
		return nil, fmt.Errorf("config: schema registry is required")
	}

	if b.cfg.BaseURL == "" {
		return nil, fmt.Errorf("config: base URL is required")
	}

	if !tenant.ValidScheme(b.cfg.BaseURL) {
		return nil, fmt.Errorf("config: base URL %q has an unsupported scheme", b.cfg.BaseURL)
	}

	if len(b.cfg.ResourceTypeConfigs) == 0 {
		return nil, fmt.Errorf("config: at least one resource type is required")
	}

	seen := make(map[string]struct{}, len(b.cfg.ResourceTypeConfigs))

	for _, rt := range b.cfg.ResourceTypeConfigs {
		if rt.Name == "" || rt.Plural == "" {
			return nil, fmt.Errorf("config: resource type is missing a name or plural")
		}

		if _, dup := seen[rt.Name]; dup {
			return nil, fmt.Errorf("config: resource type %q registered more than once", rt.Name)
		}

		seen[rt.Name] = struct{}{}

		if _, err := b.cfg.Registry.Get(rt.SchemaURN); err != nil {
			return nil, fmt.Errorf("config: resource type %q references unknown schema %q", rt.Name, rt.SchemaURN)
		}

		for _, ext := range rt.Extensions {
			if _, err := b.cfg.Registry.Get(ext); err != nil {
				return nil, fmt.Errorf("config: resource type %q references unknown extension schema %q", rt.Name, ext)
			}
		}
	}

	if b.cfg.DefaultTenantConfig == nil {
		b.cfg.DefaultTenantConfig = &tenant.ScimConfiguration{TenantID: tenant.DefaultTenantID}
	}

	cfg := b.cfg

	return &cfg, nil
}

// ResourceTypes builds the provider.ResourceType values a provider.Config
// is constructed from, resolving each ResourceTypeConfig's schema URNs
// against the registry.
func (c *ServerConfig) ResourceTypes() ([]*provider.ResourceType, error) {
	out := make([]*provider.ResourceType, 0, len(c.ResourceTypeConfigs))

	for _, rt := range c.ResourceTypeConfigs {
		base, err := c.Registry.Get(rt.SchemaURN)
		if err != nil {
			return nil, fmt.Errorf("config: resource type %q references unknown schema %q", rt.Name, rt.SchemaURN)
		}

		extensions := make([]*schema.Schema, 0, len(rt.Extensions))

		for _, urn := range rt.Extensions {
			ext, err := c.Registry.Get(urn)
			if err != nil {
				return nil, fmt.Errorf("config: resource type %q references unknown extension schema %q", rt.Name, urn)
			}

			extensions = append(extensions, ext)
		}

		out = append(out, &provider.ResourceType{
			Name:       rt.Name,
			Plural:     rt.Plural,
			Schema:     base,
			Extensions: extensions,
		})
	}

	return out, nil
}

// store is the process-wide, lock-guarded ServerConfig.
var store struct {
	mutex sync.RWMutex
	cfg   *ServerConfig
}

// Configure installs cfg as the process-wide configuration. Must be
// called once during startup, before the HTTP listener is opened.
func Configure(cfg *ServerConfig) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.cfg = cfg
}

// Lock takes a read lock on the process-wide configuration for the
// duration of a request.
func Lock() {
	store.mutex.RLock()
}

// Unlock releases the read lock taken by Lock.
func Unlock() {
	store.mutex.RUnlock()
}

// Current returns the process-wide configuration. Callers must hold Lock
// for the duration of its use.
func Current() *ServerConfig {
	return store.cfg
}
