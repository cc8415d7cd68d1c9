package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/yachtsy/yachtsy-mcp-go/storage"
)

func newStore(t *testing.T, size int, opts ...Option) *Storage {
	t.Helper()
	s, err := New(size, opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()

	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestSetGet_Namespaces(t *testing.T) {
	t.Parallel()

	s := newStore(t, 100)
	ctx := t.Context()
	key := "answer:tayana-37"

	if err := s.Set(ctx, key, []byte("global")); err != nil {
		t.Fatalf("Set() global failed: %v", err)
	}
	if err := s.Set(ctx, key, []byte("alice"), storage.WithUser("alice")); err != nil {
		t.Fatalf("Set() user failed: %v", err)
	}

	cases := []struct {
		name string
		opts []storage.Option
		want string
	}{
		{"global", nil, "global"},
		{"user", []storage.Option{storage.WithUser("alice")}, "alice"},
	}
	for _, tc := range cases {
		item, err := s.Get(ctx, key, tc.opts...)
		if err != nil || item == nil || string(item.Data) != tc.want {
			t.Fatalf("%s: got %v err=%v, want %q", tc.name, item, err, tc.want)
		}
	}

	item, err := s.Get(ctx, key, storage.WithUser("bob"))
	if err != nil || item != nil {
		t.Fatalf("other user should miss, got %v err=%v", item, err)
	}
}

func TestSet_CopiesData(t *testing.T) {
	t.Parallel()

	s := newStore(t, 10)
	buf := []byte("sloop")
	if err := s.Set(t.Context(), "k", buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'x'
	item, _ := s.Get(t.Context(), "k")
	if string(item.Data) != "sloop" {
		t.Fatalf("stored data aliased caller buffer: %q", item.Data)
	}
}

func TestTTL_ExpiresOnRead(t *testing.T) {
	t.Parallel()

	s := newStore(t, 100, WithSweepInterval(0))
	ctx := t.Context()
	ttl := 50 * time.Millisecond

	if err := s.Set(ctx, "k", []byte("v"), storage.WithTTL(ttl)); err != nil {
		t.Fatalf("Set() with TTL failed: %v", err)
	}
	item, err := s.Get(ctx, "k")
	if err != nil || item == nil || item.ExpiresAt == nil {
		t.Fatalf("expected live item with expiry, got %v err=%v", item, err)
	}

	time.Sleep(ttl + 30*time.Millisecond)

	item, err = s.Get(ctx, "k")
	if err != nil || item != nil {
		t.Fatalf("expected expired miss, got %v err=%v", item, err)
	}
	if s.Len() != 0 {
		t.Fatalf("expired item should be removed on read, len=%d", s.Len())
	}
}

func TestTTL_Sweep(t *testing.T) {
	t.Parallel()

	s := newStore(t, 100, WithSweepInterval(10*time.Millisecond))
	if err := s.Set(t.Context(), "k", []byte("v"), storage.WithTTL(5*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(t.Context(), "keep", []byte("v")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for s.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove expired entry, len=%d", s.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEviction(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	ctx := t.Context()
	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	if item, _ := s.Get(ctx, "a"); item != nil {
		t.Fatal("least recently used entry should be evicted")
	}
	if item, _ := s.Get(ctx, "c"); item == nil {
		t.Fatal("newest entry should be present")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newStore(t, 100)
	ctx := t.Context()

	for _, k := range []string{"k1", "k2"} {
		if err := s.Set(ctx, k, []byte(k), storage.WithUser("alice")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set(ctx, "k1", []byte("g")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k1", []byte("b"), storage.WithUser("bob")); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, storage.WithUser("alice"), storage.WithKey("k1")); err != nil {
		t.Fatalf("Delete() key failed: %v", err)
	}
	if item, _ := s.Get(ctx, "k1", storage.WithUser("alice")); item != nil {
		t.Fatal("deleted key still present")
	}
	if item, _ := s.Get(ctx, "k2", storage.WithUser("alice")); item == nil {
		t.Fatal("sibling key should survive single delete")
	}

	if err := s.Delete(ctx, storage.WithUser("alice")); err != nil {
		t.Fatalf("Delete() namespace failed: %v", err)
	}
	if item, _ := s.Get(ctx, "k2", storage.WithUser("alice")); item != nil {
		t.Fatal("namespace delete should remove every key of the user")
	}
	if item, _ := s.Get(ctx, "k1"); item == nil {
		t.Fatal("global data must survive a user delete")
	}
	if item, _ := s.Get(ctx, "k1", storage.WithUser("bob")); item == nil {
		t.Fatal("other user's data must survive")
	}
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()

	s := newStore(t, 10)
	ctx := t.Context()

	if err := s.Set(ctx, "k", nil, storage.WithUser("")); !errors.Is(err, storage.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions for empty user, got %v", err)
	}
	if err := s.Set(ctx, "k", nil, storage.WithTTL(-time.Second)); !errors.Is(err, storage.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions for negative TTL, got %v", err)
	}
	if _, err := s.Get(ctx, "k", storage.WithUser("")); !errors.Is(err, storage.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions for empty user on Get, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	s, err := New(10)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(t.Context(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Fatalf("Close should purge entries, len=%d", s.Len())
	}
}
