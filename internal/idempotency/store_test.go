package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Unix(1756700000, 0)
	s.now = func() time.Time { return now }

	rec := Record{
		Key:        "relay-abc",
		StatusCode: 201,
		Response:   []byte(`{"id":9}`),
		CreatedAt:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "relay-abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StatusCode != 201 || string(got.Response) != `{"id":9}` {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryStoreMissAndExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Unix(1756700000, 0)
	s.now = func() time.Time { return now }

	if _, err := s.Get(ctx, "never-seen"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	rec := Record{Key: "short", StatusCode: 200, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "short"); err != ErrNotFound {
		t.Fatalf("expired record: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSweepsExpiredOnPut(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Unix(1756700000, 0)
	s.now = func() time.Time { return now }

	_ = s.Put(ctx, Record{Key: "old", ExpiresAt: now.Add(time.Second)})
	now = now.Add(time.Hour)
	_ = s.Put(ctx, Record{Key: "new", ExpiresAt: now.Add(time.Hour)})

	s.mu.RLock()
	_, oldAlive := s.records["old"]
	s.mu.RUnlock()
	if oldAlive {
		t.Fatal("expired record survived sweep")
	}
}
