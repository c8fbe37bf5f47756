package tenant

import "sync"

// Credential binds one (tenant_id, client_id) pair to the permission set
// and isolation level it operates under. The Server façade consults a
// CredentialStore to turn an inbound TenantRef into a RequestContext;
// registering credentials is the operator's job (config file, admin API,
// whatever the deployment uses), never the core's - there is no
// password/token check here, only a lookup.
type Credential struct {
	TenantID       string
	ClientID       string
	Permissions    *Permissions
	IsolationLevel IsolationLevel
}

// CredentialStore holds every registered Credential, safe for concurrent
// use.
type CredentialStore struct {
	mutex sync.RWMutex
	byKey map[string]*Credential
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{byKey: make(map[string]*Credential)}
}

// Register adds or replaces a credential.
func (s *CredentialStore) Register(c *Credential) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.byKey[credentialKey(c.TenantID, c.ClientID)] = c
}

// Resolve looks up the Context a (tenantID, clientID) pair is registered
// under.
func (s *CredentialStore) Resolve(tenantID, clientID string) (*Context, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.byKey[credentialKey(tenantID, clientID)]
	if !ok {
		return nil, false
	}

	return &Context{
		TenantID:       c.TenantID,
		ClientID:       c.ClientID,
		Permissions:    c.Permissions,
		IsolationLevel: c.IsolationLevel,
	}, true
}

func credentialKey(tenantID, clientID string) string {
	return tenantID + "\x00" + clientID
}
