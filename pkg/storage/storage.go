// Package storage defines the opaque tenant-scoped key/value contract the
// Resource Provider persists resources through, plus the two
// concrete backends this repository ships: pkg/storage/memory and
// pkg/storage/k8s.
package storage

import (
	"context"
	"fmt"
)

// Key identifies one resource: the tenant it belongs to, its resource type,
// and its resource ID. The prefix (TenantID, ResourceType) enumerates every
// resource of a type within a tenant.
type Key struct {
	TenantID     string
	ResourceType string
	ResourceID   string
}

// Prefix returns the (TenantID, ResourceType) portion of the key, used for
// List/FindByAttribute/Count scans.
func (k Key) Prefix() Key {
	return Key{TenantID: k.TenantID, ResourceType: k.ResourceType}
}

// String renders a key as a single opaque string for backends that key on
// a flat namespace (the Kubernetes backend hashes it into a Secret name).
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.TenantID, k.ResourceType, k.ResourceID)
}

// Entry pairs a key with its stored JSON document, as returned by List and
// FindByAttribute.
type Entry struct {
	Key  Key
	Data []byte
}

// Provider is the storage abstraction the Resource Provider is built on.
// Every method may suspend on an I/O boundary (a lock acquisition or a
// remote call) and takes a context.Context; the memory and k8s backends
// accept it but do not consult it, so cancelling it does not abort a call.
// No partial write is ever observable, since each write is a single
// atomic Put.
type Provider interface {
	// Put idempotently replaces the document at key and returns the bytes
	// as stored.
	Put(ctx context.Context, key Key, data []byte) ([]byte, error)

	// Get returns the document at key, or (nil, nil) if no such key exists.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Delete removes the document at key, returning true iff an entry was
	// removed.
	Delete(ctx context.Context, key Key) (bool, error)

	// List returns entries under prefix ordered lexicographically by
	// ResourceID, applying a zero-based offset and a limit (limit <= 0
	// means unbounded).
	List(ctx context.Context, prefix Key, offset, limit int) ([]Entry, error)

	// FindByAttribute returns every entry under prefix whose value at
	// dottedPath equals value under exact string comparison. dottedPath
	// supports object keys and numeric array indices (e.g. "emails.0.value").
	FindByAttribute(ctx context.Context, prefix Key, dottedPath, value string) ([]Entry, error)

	// Exists reports whether key has a stored document.
	Exists(ctx context.Context, key Key) (bool, error)

	// Count returns the number of entries under prefix.
	Count(ctx context.Context, prefix Key) (int, error)

	// ListTenants returns every tenant ID the backend has data for.
	ListTenants(ctx context.Context) ([]string, error)

	// ListResourceTypes returns every resource type stored for a given
	// tenant.
	ListResourceTypes(ctx context.Context, tenantID string) ([]string, error)

	// ListAllResourceTypes returns every resource type stored across all
	// tenants.
	ListAllResourceTypes(ctx context.Context) ([]string, error)

	// Clear empties every prefix the backend holds. Exists solely for
	// tests and demo fixtures; no protocol path invokes it.
	Clear(ctx context.Context) error
}

// ExtractAttribute walks a decoded JSON document along a dotted path
// (object keys and numeric array indices) and returns the string form of
// the value found there, mirroring the FindByAttribute contract so
// in-process backends can share one implementation.
func ExtractAttribute(document map[string]interface{}, dottedPath string) (string, bool) {
	var current interface{} = document

	for _, segment := range splitPath(dottedPath) {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[segment]
			if !ok {
				return "", false
			}

			current = v
		case []interface{}:
			idx, err := parseIndex(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}

			current = node[idx]
		default:
			return "", false
		}
	}

	return stringify(current), true
}

func splitPath(path string) []string {
	var segments []string

	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}

	segments = append(segments, path[start:])

	return segments
}

func parseIndex(segment string) (int, error) {
	n := 0

	if segment == "" {
		return 0, fmt.Errorf("empty path segment")
	}

	for _, c := range segment {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a numeric index: %s", segment)
		}

		n = n*10 + int(c-'0')
	}

	return n, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
