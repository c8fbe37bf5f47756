package memory

import (
	"context"
	"testing"

	"github.com/scimware/scim-server/pkg/storage"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "1"}

	if _, err := s.Put(ctx, key, []byte(`{"userName":"alice"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if string(got) != `{"userName":"alice"}` {
		t.Fatalf("unexpected Get result: %s", got)
	}

	removed, err := s.Delete(ctx, key)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}

	got, err = s.Get(ctx, key)
	if err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %v err=%v", got, err)
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	prefix := storage.Key{TenantID: "default", ResourceType: "User"}

	for _, id := range []string{"c", "a", "b"} {
		key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: id}
		if _, err := s.Put(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	entries, err := s.List(ctx, prefix, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Key.ResourceID != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, entries[i].Key.ResourceID)
		}
	}

	page, err := s.List(ctx, prefix, 1, 1)
	if err != nil {
		t.Fatalf("List paginated: %v", err)
	}

	if len(page) != 1 || page[0].Key.ResourceID != "b" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestFindByAttribute(t *testing.T) {
	ctx := context.Background()
	s := New()
	prefix := storage.Key{TenantID: "default", ResourceType: "User"}

	alice := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "1"}
	bob := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "2"}

	if _, err := s.Put(ctx, alice, []byte(`{"emails":[{"value":"a@x.com"}]}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := s.Put(ctx, bob, []byte(`{"emails":[{"value":"b@x.com"}]}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	matches, err := s.FindByAttribute(ctx, prefix, "emails.0.value", "a@x.com")
	if err != nil {
		t.Fatalf("FindByAttribute: %v", err)
	}

	if len(matches) != 1 || matches[0].Key != alice {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := storage.Key{TenantID: "a", ResourceType: "User", ResourceID: "1"}
	b := storage.Key{TenantID: "b", ResourceType: "User", ResourceID: "1"}

	if _, err := s.Put(ctx, a, []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := s.List(ctx, storage.Key{TenantID: "b", ResourceType: "User"}, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("expected tenant b to see no entries, got %d", len(entries))
	}

	if _, err := s.Get(ctx, b); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := New()

	key := storage.Key{TenantID: "default", ResourceType: "User", ResourceID: "1"}
	if _, err := s.Put(ctx, key, []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	count, err := s.Count(ctx, key.Prefix())
	if err != nil || count != 0 {
		t.Fatalf("expected empty store after Clear, count=%d err=%v", count, err)
	}
}
