package linkcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteBackend(t *testing.T) (*SQLiteBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links", "proxy_link_cache.db")
	backend, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend, path
}

func TestSQLiteBackend_Contract(t *testing.T) {
	backend, _ := newTestSQLiteBackend(t)
	testBackendContract(t, backend)
}

func TestSQLiteBackend_ReplacesExpiredDigest(t *testing.T) {
	backend, _ := newTestSQLiteBackend(t)
	ctx := context.Background()
	now := time.Now()

	old := &Record{
		Digest:    Digest("reused"),
		Source:    SourceSelf,
		Payload:   []byte("old"),
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := backend.Insert(ctx, old, old.CreatedAt); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	fresh := &Record{
		Digest:    old.Digest,
		Source:    SourcePTAB,
		Payload:   []byte("new"),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := backend.Insert(ctx, fresh, now); err != nil {
		t.Fatalf("Expected expired row to be replaced, got %v", err)
	}

	got, err := backend.Get(ctx, old.Digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Payload) != "new" || got.Source != SourcePTAB {
		t.Errorf("Expected replaced row, got %+v", got)
	}
}

func TestSQLiteBackend_SweepAndStats(t *testing.T) {
	backend, _ := newTestSQLiteBackend(t)
	ctx := context.Background()
	now := time.Now()

	inserts := []struct {
		token  string
		source SourceSystem
		ttl    time.Duration
	}{
		{"a", SourceSelf, time.Hour},
		{"b", SourceFPD, time.Hour},
		{"c", SourceFPD, -time.Second},
		{"d", SourcePTAB, -time.Minute},
	}
	for _, in := range inserts {
		rec := &Record{
			Digest:    Digest(in.token),
			Source:    in.source,
			Payload:   []byte("{}"),
			CreatedAt: now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(in.ttl),
		}
		if err := backend.Insert(ctx, rec, rec.CreatedAt); err != nil {
			t.Fatalf("Insert %s failed: %v", in.token, err)
		}
	}

	stats, err := backend.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Active != 2 || stats.Expired != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.BySource[SourceFPD] != 1 || stats.BySource[SourcePTAB] != 0 {
		t.Errorf("Unexpected per-source counts: %v", stats.BySource)
	}

	removed, err := backend.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.db")
	ctx := context.Background()

	backend, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	c := New(backend, Config{})
	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("Failed to reopen SQLite backend: %v", err)
	}
	c = New(reopened, Config{})
	defer c.Close()

	got, err := c.Resolve(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Resolve after reopen failed: %v", err)
	}
	if got.Ref.Key != "17896175" {
		t.Errorf("Unexpected ref after reopen: %+v", got.Ref)
	}
}

func TestSQLiteBackend_Config(t *testing.T) {
	if _, err := NewSQLiteBackend(SQLiteConfig{}); err == nil {
		t.Error("Expected error for empty path")
	}

	_, err := NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), Driver: "postgres"})
	if err == nil {
		t.Fatal("Expected error for unsupported driver")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("Unexpected error kind: %v", err)
	}
}
