// Package memory implements the default storage.Provider backend: an
// RWMutex-guarded in-process map. Readers proceed in parallel; writers
// exclude all others.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/scimware/scim-server/pkg/storage"
)

// Store is the in-memory storage.Provider implementation.
type Store struct {
	mutex sync.RWMutex
	data  map[storage.Key][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[storage.Key][]byte)}
}

var _ storage.Provider = (*Store)(nil)

// Put idempotently replaces the document at key.
func (s *Store) Put(_ context.Context, key storage.Key, data []byte) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[key] = stored

	return stored, nil
}

// Get returns the document at key, or (nil, nil) if absent.
func (s *Store) Get(_ context.Context, key storage.Key) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, nil
	}

	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

// Delete removes the document at key.
func (s *Store) Delete(_ context.Context, key storage.Key) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.data[key]; !ok {
		return false, nil
	}

	delete(s.data, key)

	return true, nil
}

// List returns entries under prefix, ordered lexicographically by
// ResourceID, paginated by a zero-based offset and a limit.
func (s *Store) List(_ context.Context, prefix storage.Key, offset, limit int) ([]storage.Entry, error) {
	entries := s.scan(prefix)

	if offset < 0 {
		offset = 0
	}

	if offset >= len(entries) {
		return []storage.Entry{}, nil
	}

	entries = entries[offset:]

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	return entries, nil
}

// FindByAttribute returns entries under prefix whose value at dottedPath
// equals value under exact string comparison.
func (s *Store) FindByAttribute(_ context.Context, prefix storage.Key, dottedPath, value string) ([]storage.Entry, error) {
	var matches []storage.Entry

	for _, entry := range s.scan(prefix) {
		var document map[string]interface{}
		if err := json.Unmarshal(entry.Data, &document); err != nil {
			return nil, storage.NewInvalidDataError("decoding stored document for %s: %v", entry.Key, err)
		}

		extracted, ok := storage.ExtractAttribute(document, dottedPath)
		if ok && extracted == value {
			matches = append(matches, entry)
		}
	}

	if matches == nil {
		matches = []storage.Entry{}
	}

	return matches, nil
}

// Exists reports whether key has a stored document.
func (s *Store) Exists(_ context.Context, key storage.Key) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.data[key]

	return ok, nil
}

// Count returns the number of entries under prefix.
func (s *Store) Count(_ context.Context, prefix storage.Key) (int, error) {
	return len(s.scan(prefix)), nil
}

// ListTenants returns every tenant ID with at least one stored entry.
func (s *Store) ListTenants(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.TenantID] = struct{}{}
	}

	return sortedKeys(seen), nil
}

// ListResourceTypes returns every resource type stored for tenantID.
func (s *Store) ListResourceTypes(_ context.Context, tenantID string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		if k.TenantID == tenantID {
			seen[k.ResourceType] = struct{}{}
		}
	}

	return sortedKeys(seen), nil
}

// ListAllResourceTypes returns every resource type stored across all
// tenants.
func (s *Store) ListAllResourceTypes(_ context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.ResourceType] = struct{}{}
	}

	return sortedKeys(seen), nil
}

// Clear empties the store. Test/demo-only.
func (s *Store) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data = make(map[storage.Key][]byte)

	return nil
}

// scan returns a snapshot of every entry whose key matches prefix
// (TenantID and, if set, ResourceType), sorted lexicographically by
// ResourceID so pagination is stable absent concurrent mutation.
func (s *Store) scan(prefix storage.Key) []storage.Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []storage.Entry

	for k, v := range s.data {
		if k.TenantID != prefix.TenantID {
			continue
		}

		if prefix.ResourceType != "" && k.ResourceType != prefix.ResourceType {
			continue
		}

		out := make([]byte, len(v))
		copy(out, v)
		entries = append(entries, storage.Entry{Key: k, Data: out})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.ResourceID < entries[j].Key.ResourceID
	})

	return entries
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
