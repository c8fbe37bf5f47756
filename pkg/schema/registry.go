package schema

import (
	"io/ioutil"
	"sync"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/log"

	"github.com/ghodss/yaml"
	"github.com/golang/glog"
)

// Registry holds the set of schemas a server instance validates resources
// against, keyed by schema URN. It is safe for concurrent use; schemas are
// loaded once at construction and never mutated afterwards; Add is only
// intended for test fixtures and tenant-specific extension wiring.
type Registry struct {
	mutex   sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns a Registry pre-populated with the bundled core
// schemas (User, Group, ServiceProviderConfig) and the enterprise
// extension.
func NewRegistry() (*Registry, error) {
	schemas, err := loadEmbedded()
	if err != nil {
		return nil, err
	}

	glog.V(log.LevelDebug).Infof("schema registry loaded %d embedded schemas", len(schemas))

	return &Registry{schemas: schemas}, nil
}

// Add registers an additional schema, overwriting any existing schema with
// the same ID.
func (r *Registry) Add(s *Schema) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.schemas[s.ID] = s
}

// Get looks up a schema by its URN.
func (r *Registry) Get(urn string) (*Schema, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.schemas[urn]
	if !ok {
		return nil, errors.NewNotFoundError("schema %q is not registered", urn)
	}

	return s, nil
}

// LoadExtensionFile registers a caller-defined extension schema described
// as YAML (or JSON, which is valid YAML) on disk: an operator ships a
// resource type the core never heard of by describing its schema this way
// instead of recompiling the server. Uses ghodss/yaml so the same struct tags that
// drive the embedded JSON schemas apply unchanged.
func (r *Registry) LoadExtensionFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.NewValidationError("reading extension schema %s: %v", path, err)
	}

	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return errors.NewValidationError("parsing extension schema %s: %v", path, err)
	}

	if s.ID == "" {
		return errors.NewValidationError("extension schema %s has no id", path)
	}

	glog.V(log.LevelDebug).Infof("schema registry loaded extension %s from %s", s.ID, path)

	r.Add(s)

	return nil
}

// List returns every schema currently registered, in no particular order.
func (r *Registry) List() []*Schema {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}

	return out
}
