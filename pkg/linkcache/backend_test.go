package linkcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testBackendContract exercises the Backend contract shared by every store.
func testBackendContract(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	live := &Record{
		Digest:    Digest("live-token"),
		Source:    SourceSelf,
		RefDigest: Digest("self|17896175|DOC1"),
		Payload:   []byte(`{"token":"live-token"}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := backend.Insert(ctx, live, now); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := backend.Get(ctx, live.Digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Source != live.Source || string(got.Payload) != string(live.Payload) || !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("Get returned %+v, want %+v", got, live)
	}

	if err := backend.Insert(ctx, live, now); !errors.Is(err, ErrCollision) {
		t.Errorf("Expected ErrCollision for live duplicate, got %v", err)
	}

	found, err := backend.FindLive(ctx, SourceSelf, live.RefDigest, now)
	if err != nil {
		t.Fatalf("FindLive failed: %v", err)
	}
	if found.Digest != live.Digest {
		t.Errorf("FindLive returned %q, want %q", found.Digest, live.Digest)
	}
	if _, err := backend.FindLive(ctx, SourceFPD, live.RefDigest, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other source, got %v", err)
	}

	if _, err := backend.Get(ctx, Digest("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	stats, err := backend.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Active != 1 || stats.BySource[SourceSelf] != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if err := backend.Delete(ctx, live.Digest); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := backend.Get(ctx, live.Digest); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := backend.Delete(ctx, live.Digest); err != nil {
		t.Errorf("Deleting a missing row should succeed, got %v", err)
	}

	if err := backend.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMemoryBackend_Contract(t *testing.T) {
	testBackendContract(t, NewMemoryBackend())
}

func TestMemoryBackend_DeleteExpired(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	now := time.Now()

	for i, ttl := range []time.Duration{-time.Minute, 0, time.Minute} {
		rec := &Record{
			Digest:    Digest(string(rune('a' + i))),
			Source:    SourceSelf,
			Payload:   []byte("{}"),
			CreatedAt: now.Add(-time.Hour),
			ExpiresAt: now.Add(ttl),
		}
		if err := backend.Insert(ctx, rec, now.Add(-time.Hour)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	removed, err := backend.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed (expiry at or before now), got %d", removed)
	}
}
