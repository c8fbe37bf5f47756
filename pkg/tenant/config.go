package tenant

import "sync"

// RateLimit is a token-bucket-style per-operation limit: at most Max
// operations per Window, refilled at rate Max/Window, with Burst allowing
// a short-lived overshoot. Checked by the Server façade before delegating
// to the Provider; fails open when unconfigured.
type RateLimit struct {
	Max    int
	Window int64 // seconds
	Burst  int
}

// ScimConfiguration holds per-tenant operational settings beyond the
// request-scoped Context: rate limits, which schema extensions are
// active, and whether mutating operations should be logged.
type ScimConfiguration struct {
	TenantID string

	// RateLimits maps an operation name, as the Server façade names it
	// ("create", "get", "update", "replace", "patch", "delete", "list",
	// "search", "exists"), to its limit. An operation absent from the map is
	// unlimited.
	RateLimits map[string]RateLimit

	// ActiveExtensions is the set of schema URNs this tenant has enabled,
	// consulted when resolving extension attributes. A nil/empty set means no restriction (all registered schemas
	// are active) — explicit opt-in is required to restrict, not to
	// allow, so a freshly provisioned tenant isn't unexpectedly narrowed.
	ActiveExtensions map[string]struct{}

	// AuditEnabled toggles a structured glog line on mutating operations.
	// The audit trail is log-only, never persisted.
	AuditEnabled bool
}

// ExtensionActive reports whether a schema URN is active for this
// configuration. A nil ScimConfiguration, or one with no
// ActiveExtensions configured, allows every URN.
func (c *ScimConfiguration) ExtensionActive(schemaURN string) bool {
	if c == nil || len(c.ActiveExtensions) == 0 {
		return true
	}

	_, ok := c.ActiveExtensions[schemaURN]

	return ok
}

// ConfigStore holds per-tenant ScimConfiguration, read-mostly after
// startup and safe for concurrent use.
type ConfigStore struct {
	mutex  sync.RWMutex
	byID   map[string]*ScimConfiguration
	defCfg *ScimConfiguration
}

// NewConfigStore returns an empty store; Get falls back to a permissive
// default configuration for any tenant without an explicit entry.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		byID:   make(map[string]*ScimConfiguration),
		defCfg: &ScimConfiguration{},
	}
}

// Set registers (or replaces) a tenant's configuration.
func (s *ConfigStore) Set(cfg *ScimConfiguration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.byID[cfg.TenantID] = cfg
}

// Get returns the configuration for tenantID, or a permissive default
// (no rate limits, all extensions active, audit disabled) if none was
// registered.
func (s *ConfigStore) Get(tenantID string) *ScimConfiguration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if cfg, ok := s.byID[tenantID]; ok {
		return cfg
	}

	return s.defCfg
}
