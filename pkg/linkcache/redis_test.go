package linkcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	backend, err := NewRedisBackend(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to create Redis backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend, mr
}

func TestRedisBackend_Contract(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	testBackendContract(t, backend)
}

func TestRedisBackend_KeysCarryTTL(t *testing.T) {
	backend, mr := newTestRedisBackend(t)
	ctx := context.Background()

	c := New(backend, Config{TTL: time.Minute})
	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	key := "pfw:link:" + Digest(tok.Token)
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL in (0, 1m], got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := c.Resolve(ctx, tok.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Redis expiry, got %v", err)
	}
	if _, err := c.FindByRef(ctx, SourceSelf, sampleRequest().Ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ref index to expire too, got %v", err)
	}
}

func TestRedisBackend_DeleteExpiredRecordedEarly(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	ctx := context.Background()
	now := time.Now()

	rec := &Record{
		Digest:    Digest("skewed"),
		Source:    SourceFPD,
		Payload:   []byte("{}"),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	if err := backend.Insert(ctx, rec, now); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	removed, err := backend.DeleteExpired(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
}

func TestRedisBackend_InsertNeverOverwrites(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	ctx := context.Background()
	now := time.Now()

	first := &Record{Digest: Digest("dup"), Source: SourceSelf, Payload: []byte(`"first"`), CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	if err := backend.Insert(ctx, first, now); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// A caller whose clock runs ahead still must not replace a key Redis holds.
	later := now.Add(2 * time.Minute)
	second := &Record{Digest: Digest("dup"), Source: SourceSelf, Payload: []byte(`"second"`), CreatedAt: later, ExpiresAt: later.Add(time.Minute)}
	if err := backend.Insert(ctx, second, later); !errors.Is(err, ErrCollision) {
		t.Fatalf("Expected ErrCollision, got %v", err)
	}

	got, err := backend.Get(ctx, Digest("dup"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Payload) != `"first"` {
		t.Errorf("Existing payload was replaced: %s", got.Payload)
	}
}

func TestRedisBackend_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackendFromClient(client, "test:")
	defer backend.Close()

	now := time.Now()
	rec := &Record{Digest: "abc", Source: SourceSelf, Payload: []byte("{}"), CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := backend.Insert(context.Background(), rec, now); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !mr.Exists("test:link:abc") {
		t.Errorf("Expected key under custom prefix, have %v", mr.Keys())
	}
}

func TestNewRedisBackend_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisBackend(ctx, RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("Expected connection error")
	}
}
