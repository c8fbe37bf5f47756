package k8s

import (
	"context"
	"testing"

	"github.com/scimware/scim-server/pkg/storage"

	"k8s.io/client-go/kubernetes/fake"
)

func newTestStore() *Store {
	return New(fake.NewSimpleClientset(), "default")
}

func mustPut(t *testing.T, s *Store, key storage.Key, doc string) {
	t.Helper()

	if _, err := s.Put(context.Background(), key, []byte(doc)); err != nil {
		t.Fatalf("Put(%v): %v", key, err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "u1"}
	mustPut(t, s, key, `{"userName":"bjensen"}`)

	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if string(data) != `{"userName":"bjensen"}` {
		t.Fatalf("unexpected document: %s", data)
	}
}

func TestPutReplacesExistingSecret(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "u1"}
	mustPut(t, s, key, `{"v":1}`)
	mustPut(t, s, key, `{"v":2}`)

	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if string(data) != `{"v":2}` {
		t.Fatalf("expected the replacement document, got %s", data)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore()

	data, err := s.Get(context.Background(), storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "missing"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if data != nil {
		t.Fatalf("expected nil for a missing key, got %s", data)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "u1"}
	mustPut(t, s, key, `{}`)

	removed, err := s.Delete(ctx, key)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if !removed {
		t.Fatalf("expected Delete to report removal")
	}

	removed, err = s.Delete(ctx, key)
	if err != nil {
		t.Fatalf("Delete (second): %v", err)
	}

	if removed {
		t.Fatalf("expected the second Delete to report no removal")
	}
}

func TestListOrderedAndScoped(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "u2"}, `{}`)
	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "u1"}, `{}`)
	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "Group", ResourceID: "g1"}, `{}`)
	mustPut(t, s, storage.Key{TenantID: "b", ResourceType: "User", ResourceID: "u3"}, `{}`)

	entries, err := s.List(ctx, storage.Key{TenantID: "a", ResourceType: "User"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Key.ResourceID != "u1" || entries[1].Key.ResourceID != "u2" {
		t.Fatalf("expected ID-ordered entries, got %v, %v", entries[0].Key, entries[1].Key)
	}
}

func TestFindByAttribute(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "u1"}, `{"userName":"bjensen"}`)
	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "u2"}, `{"userName":"ajensen"}`)

	matches, err := s.FindByAttribute(ctx, storage.Key{TenantID: "a", ResourceType: "User"}, "userName", "bjensen")
	if err != nil {
		t.Fatalf("FindByAttribute: %v", err)
	}

	if len(matches) != 1 || matches[0].Key.ResourceID != "u1" {
		t.Fatalf("unexpected matches: %v", matches)
	}
}

func TestListTenantsAndClear(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	mustPut(t, s, storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "u1"}, `{}`)
	mustPut(t, s, storage.Key{TenantID: "b", ResourceType: "Group", ResourceID: "g1"}, `{}`)

	tenants, err := s.ListTenants(ctx)
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}

	if len(tenants) != 2 || tenants[0] != "a" || tenants[1] != "b" {
		t.Fatalf("unexpected tenants: %v", tenants)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	count, err := s.Count(ctx, storage.Key{TenantID: "a", ResourceType: "User"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	if count != 0 {
		t.Fatalf("expected an empty store after Clear, got %d entries", count)
	}
}
