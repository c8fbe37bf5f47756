// Package k8s implements a storage.Provider backed by Kubernetes Secrets:
// each resource becomes one Secret, keyed by (tenant, resourceType, id) via
// labels plus a deterministic Secret name, with the JSON document as the
// single entry in the Secret's Data map.
package k8s

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/scimware/scim-server/pkg/log"
	"github.com/scimware/scim-server/pkg/storage"

	"github.com/golang/glog"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	labelApp          = "app"
	appName           = "scim-server"
	labelTenant       = "scim-server.io/tenant"
	labelResourceType = "scim-server.io/resource-type"
	labelResourceID   = "scim-server.io/resource-id"
	dataKey           = "resource"
)

// Store is a storage.Provider backed by a Kubernetes Secret per resource,
// all living in one namespace.
type Store struct {
	client    kubernetes.Interface
	namespace string
}

// New returns a Store that persists resources as Secrets in namespace,
// using client to talk to the API server.
func New(client kubernetes.Interface, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

var _ storage.Provider = (*Store)(nil)

// secretName derives a deterministic, DNS-1123-safe Secret name from a
// storage key, since resource IDs (UUIDs) and tenant IDs aren't guaranteed
// to be valid Kubernetes object names on their own.
func secretName(key storage.Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return fmt.Sprintf("scim-%s", hex.EncodeToString(sum[:])[:32])
}

// Put idempotently replaces the document at key.
func (s *Store) Put(_ context.Context, key storage.Key, data []byte) ([]byte, error) {
	name := secretName(key)

	secrets := s.client.CoreV1().Secrets(s.namespace)

	existing, err := secrets.Get(name, metav1.GetOptions{})
	if err != nil {
		if !k8serrors.IsNotFound(err) {
			return nil, classifyError(err)
		}

		secret := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: s.namespace,
				Labels: map[string]string{
					labelApp:          appName,
					labelTenant:       key.TenantID,
					labelResourceType: key.ResourceType,
					labelResourceID:   key.ResourceID,
				},
			},
			Data: map[string][]byte{dataKey: data},
		}

		if _, err := secrets.Create(secret); err != nil {
			return nil, classifyError(err)
		}

		glog.V(log.LevelDebug).Infof("k8s storage: created secret %s for key %s", name, key)

		return data, nil
	}

	existing.Data = map[string][]byte{dataKey: data}

	if _, err := secrets.Update(existing); err != nil {
		return nil, classifyError(err)
	}

	glog.V(log.LevelDebug).Infof("k8s storage: updated secret %s for key %s", name, key)

	return data, nil
}

// Get returns the document at key, or (nil, nil) if absent.
func (s *Store) Get(_ context.Context, key storage.Key) ([]byte, error) {
	secret, err := s.client.CoreV1().Secrets(s.namespace).Get(secretName(key), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil, nil
		}

		return nil, classifyError(err)
	}

	return secret.Data[dataKey], nil
}

// Delete removes the Secret backing key.
func (s *Store) Delete(_ context.Context, key storage.Key) (bool, error) {
	secrets := s.client.CoreV1().Secrets(s.namespace)

	if err := secrets.Delete(secretName(key), &metav1.DeleteOptions{}); err != nil {
		if k8serrors.IsNotFound(err) {
			return false, nil
		}

		return false, classifyError(err)
	}

	return true, nil
}

// Exists reports whether key has a stored Secret.
func (s *Store) Exists(_ context.Context, key storage.Key) (bool, error) {
	_, err := s.client.CoreV1().Secrets(s.namespace).Get(secretName(key), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return false, nil
		}

		return false, classifyError(err)
	}

	return true, nil
}

// List returns entries under prefix ordered lexicographically by
// ResourceID, paginated by offset/limit.
func (s *Store) List(_ context.Context, prefix storage.Key, offset, limit int) ([]storage.Entry, error) {
	entries, err := s.scan(prefix)
	if err != nil {
		return nil, err
	}

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
// equals value.
func (s *Store) FindByAttribute(_ context.Context, prefix storage.Key, dottedPath, value string) ([]storage.Entry, error) {
	entries, err := s.scan(prefix)
	if err != nil {
		return nil, err
	}

	var matches []storage.Entry

	for _, entry := range entries {
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

// Count returns the number of entries under prefix.
func (s *Store) Count(_ context.Context, prefix storage.Key) (int, error) {
	entries, err := s.scan(prefix)
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}

// ListTenants returns every tenant ID with at least one stored Secret.
func (s *Store) ListTenants(_ context.Context) ([]string, error) {
	secrets, err := s.listAppSecrets("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, secret := range secrets {
		seen[secret.Labels[labelTenant]] = struct{}{}
	}

	return sortedKeys(seen), nil
}

// ListResourceTypes returns every resource type stored for tenantID.
func (s *Store) ListResourceTypes(_ context.Context, tenantID string) ([]string, error) {
	secrets, err := s.listAppSecrets(tenantID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, secret := range secrets {
		seen[secret.Labels[labelResourceType]] = struct{}{}
	}

	return sortedKeys(seen), nil
}

// ListAllResourceTypes returns every resource type stored across all
// tenants.
func (s *Store) ListAllResourceTypes(_ context.Context) ([]string, error) {
	secrets, err := s.listAppSecrets("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, secret := range secrets {
		seen[secret.Labels[labelResourceType]] = struct{}{}
	}

	return sortedKeys(seen), nil
}

// Clear deletes every Secret this backend manages in its namespace.
// Test/demo-only; the Kubernetes API server's own consistency
// guarantees determine how quickly the deletions are observable to other
// clients.
func (s *Store) Clear(_ context.Context) error {
	secrets, err := s.listAppSecrets("")
	if err != nil {
		return err
	}

	client := s.client.CoreV1().Secrets(s.namespace)

	for _, secret := range secrets {
		if err := client.Delete(secret.Name, &metav1.DeleteOptions{}); err != nil && !k8serrors.IsNotFound(err) {
			return classifyError(err)
		}
	}

	return nil
}

func (s *Store) scan(prefix storage.Key) ([]storage.Entry, error) {
	secrets, err := s.listAppSecrets(prefix.TenantID)
	if err != nil {
		return nil, err
	}

	var entries []storage.Entry

	for _, secret := range secrets {
		if prefix.ResourceType != "" && secret.Labels[labelResourceType] != prefix.ResourceType {
			continue
		}

		entries = append(entries, storage.Entry{
			Key: storage.Key{
				TenantID:     secret.Labels[labelTenant],
				ResourceType: secret.Labels[labelResourceType],
				ResourceID:   secret.Labels[labelResourceID],
			},
			Data: secret.Data[dataKey],
		})
	}

	sortEntries(entries)

	return entries, nil
}

// listAppSecrets returns every Secret this backend manages, optionally
// restricted to one tenant via a label selector.
func (s *Store) listAppSecrets(tenantID string) ([]corev1.Secret, error) {
	selector := labelApp + "=" + appName
	if tenantID != "" {
		selector += "," + labelTenant + "=" + tenantID
	}

	list, err := s.client.CoreV1().Secrets(s.namespace).List(metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, classifyError(err)
	}

	return list.Items, nil
}

func sortEntries(entries []storage.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.ResourceID < entries[j].Key.ResourceID
	})
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}

// classifyError maps a Kubernetes API error onto the storage error
// taxonomy.
func classifyError(err error) error {
	switch {
	case k8serrors.IsNotFound(err):
		return storage.NewNotFoundError("%v", err)
	case k8serrors.IsAlreadyExists(err):
		return storage.NewAlreadyExistsError("%v", err)
	case k8serrors.IsConflict(err):
		return storage.NewConcurrentModificationError("%v", err)
	case k8serrors.IsTimeout(err), k8serrors.IsServerTimeout(err):
		return storage.NewTimeoutError("%v", err)
	case k8serrors.IsServiceUnavailable(err), k8serrors.IsTooManyRequests(err):
		return storage.NewUnavailableError(err)
	case k8serrors.IsInvalid(err), k8serrors.IsBadRequest(err):
		return storage.NewInvalidDataError("%v", err)
	default:
		return storage.NewInternalError(err)
	}
}
