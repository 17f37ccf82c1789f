package linkcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	mu       sync.Mutex
	issued   map[SourceSystem]int
	resolved map[string]int
	swept    int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{issued: map[SourceSystem]int{}, resolved: map[string]int{}}
}

func (o *countingObserver) LinkIssued(s SourceSystem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued[s]++
}

func (o *countingObserver) LinkResolved(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolved[outcome]++
}

func (o *countingObserver) LinksSwept(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.swept += n
}

func sampleRequest() IssueRequest {
	return IssueRequest{
		Source: SourceSelf,
		Ref: DocumentRef{
			Key:        "17896175",
			DocumentID: "L7AJVPB2GREENX5",
			Attributes: map[string]string{"document_code": "ABST"},
		},
		DisplayFilename: "ABST.pdf",
		ContentHint:     ContentPDF,
	}
}

func newTestCache(t *testing.T, backend Backend, ttl time.Duration) (*Cache, *testClock, *countingObserver) {
	t.Helper()
	clock := newTestClock()
	obs := newCountingObserver()
	c := New(backend, Config{TTL: ttl, Now: clock.Now, Observer: obs})
	t.Cleanup(func() { c.Close() })
	return c, clock, obs
}

func TestCache_IssueAndResolve(t *testing.T) {
	c, clock, obs := newTestCache(t, NewMemoryBackend(), time.Hour)
	ctx := context.Background()

	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !ValidTokenSyntax(tok.Token) || len(tok.Token) < 22 {
		t.Errorf("Unexpected token %q", tok.Token)
	}
	if !tok.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("Expected expiry now+1h, got %v", tok.ExpiresAt)
	}

	got, err := c.Resolve(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.SourceSystem != SourceSelf || got.Ref.DocumentID != "L7AJVPB2GREENX5" || got.DisplayFilename != "ABST.pdf" {
		t.Errorf("Resolved token does not match issued one: %+v", got)
	}
	if got.Ref.Attr("document_code") != "ABST" {
		t.Errorf("Expected attribute to survive storage, got %q", got.Ref.Attr("document_code"))
	}
	if obs.issued[SourceSelf] != 1 || obs.resolved[OutcomeHit] != 1 {
		t.Errorf("Unexpected observer counts: issued=%v resolved=%v", obs.issued, obs.resolved)
	}
}

func TestCache_ResolveIsIdempotent(t *testing.T) {
	c, _, _ := newTestCache(t, NewMemoryBackend(), time.Hour)
	ctx := context.Background()

	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	first, err := c.Resolve(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := c.Resolve(ctx, tok.Token)
		if err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
		if !again.ExpiresAt.Equal(first.ExpiresAt) || !again.CreatedAt.Equal(first.CreatedAt) {
			t.Fatalf("Resolve changed the token: %+v vs %+v", again, first)
		}
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected 1 stored link after repeated resolves, got %d", stats.Total)
	}
}

func TestCache_ExpiryBoundary(t *testing.T) {
	c, clock, obs := newTestCache(t, NewMemoryBackend(), time.Minute)
	ctx := context.Background()

	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(time.Minute - time.Nanosecond)
	if _, err := c.Resolve(ctx, tok.Token); err != nil {
		t.Fatalf("Expected token valid just before expiry, got %v", err)
	}

	clock.Advance(time.Nanosecond)
	if _, err := c.Resolve(ctx, tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound at expires_at, got %v", err)
	}
	if obs.resolved[OutcomeExpired] != 1 {
		t.Errorf("Expected one expired outcome, got %v", obs.resolved)
	}

	stats, _ := c.Stats(ctx)
	if stats.Total != 0 {
		t.Errorf("Expected expired row to be removed on read, got %d rows", stats.Total)
	}
}

func TestCache_UnknownAndExpiredLookAlike(t *testing.T) {
	c, clock, _ := newTestCache(t, NewMemoryBackend(), time.Second)
	ctx := context.Background()

	tok, _ := c.Issue(ctx, sampleRequest())
	clock.Advance(2 * time.Second)

	_, errExpired := c.Resolve(ctx, tok.Token)
	_, errUnknown := c.Resolve(ctx, "not-a-real-token")
	_, errMalformed := c.Resolve(ctx, "../../etc/passwd")

	for name, err := range map[string]error{"expired": errExpired, "unknown": errUnknown, "malformed": errMalformed} {
		if err != ErrNotFound {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestCache_CollisionRegenerates(t *testing.T) {
	tokens := []string{"AAAAAAAAAAAAAAAAAAAAAA", "AAAAAAAAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBBBBBBBB"}
	var i int
	clock := newTestClock()
	c := New(NewMemoryBackend(), Config{
		TTL: time.Hour,
		Now: clock.Now,
		NewToken: func() (string, error) {
			tok := tokens[i]
			i++
			return tok, nil
		},
	})
	ctx := context.Background()

	first, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue after collision failed: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("Expected collision to produce a fresh token")
	}
	if second.Token != tokens[2] {
		t.Errorf("Expected third generated token, got %q", second.Token)
	}
}

func TestCache_CollisionWithExpiredEntryReuses(t *testing.T) {
	clock := newTestClock()
	c := New(NewMemoryBackend(), Config{
		TTL:      time.Minute,
		Now:      clock.Now,
		NewToken: func() (string, error) { return "CCCCCCCCCCCCCCCCCCCCCC", nil },
	})
	ctx := context.Background()

	if _, err := c.Issue(ctx, sampleRequest()); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := c.Issue(ctx, sampleRequest()); err != nil {
		t.Fatalf("Expected expired entry to be replaced, got %v", err)
	}
}

func TestCache_CollisionGivesUp(t *testing.T) {
	c := New(NewMemoryBackend(), Config{
		NewToken: func() (string, error) { return "DDDDDDDDDDDDDDDDDDDDDD", nil },
	})
	ctx := context.Background()

	if _, err := c.Issue(ctx, sampleRequest()); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := c.Issue(ctx, sampleRequest()); !errors.Is(err, ErrCollision) {
		t.Fatalf("Expected ErrCollision, got %v", err)
	}
}

func TestCache_ConcurrentIssueProducesDistinctTokens(t *testing.T) {
	c, _, _ := newTestCache(t, NewMemoryBackend(), time.Hour)
	ctx := context.Background()

	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := sampleRequest()
			req.Ref.DocumentID = fmt.Sprintf("DOC%d", i)
			tok, err := c.Issue(ctx, req)
			if err != nil {
				t.Errorf("Issue failed: %v", err)
				return
			}
			mu.Lock()
			seen[tok.Token] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("Expected %d distinct tokens, got %d", n, len(seen))
	}
}

func TestCache_FindByRef(t *testing.T) {
	c, clock, _ := newTestCache(t, NewMemoryBackend(), time.Hour)
	ctx := context.Background()

	req := sampleRequest()
	req.Source = SourceFPD
	tok, err := c.Issue(ctx, req)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	found, err := c.FindByRef(ctx, SourceFPD, req.Ref)
	if err != nil {
		t.Fatalf("FindByRef failed: %v", err)
	}
	if found.Token != tok.Token {
		t.Errorf("Expected %q, got %q", tok.Token, found.Token)
	}

	if _, err := c.FindByRef(ctx, SourcePTAB, req.Ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other source, got %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := c.FindByRef(ctx, SourceFPD, req.Ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func TestCache_SweepAndStats(t *testing.T) {
	c, clock, obs := newTestCache(t, NewMemoryBackend(), time.Hour)
	ctx := context.Background()

	short := sampleRequest()
	short.TTL = time.Minute
	for i := 0; i < 3; i++ {
		if _, err := c.Issue(ctx, short); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
	}
	ptab := sampleRequest()
	ptab.Source = SourcePTAB
	if _, err := c.Issue(ctx, ptab); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(2 * time.Minute)

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Active != 1 || stats.Expired != 3 {
		t.Errorf("Unexpected stats before sweep: %+v", stats)
	}
	if stats.BySource[SourcePTAB] != 1 {
		t.Errorf("Expected 1 active ptab link, got %v", stats.BySource)
	}

	removed, err := c.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 3 || obs.swept != 3 {
		t.Errorf("Expected 3 removed, got %d (observer %d)", removed, obs.swept)
	}
}

func TestCache_SealedPayloads(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	backend := NewMemoryBackend()
	c := New(backend, Config{Sealer: sealer})
	ctx := context.Background()

	tok, err := c.Issue(ctx, sampleRequest())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	rec, err := backend.Get(ctx, Digest(tok.Token))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bytes.Contains(rec.Payload, []byte("L7AJVPB2GREENX5")) || bytes.Contains(rec.Payload, []byte(tok.Token)) {
		t.Error("Sealed payload leaks descriptor or token")
	}

	if _, err := c.Resolve(ctx, tok.Token); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	other, _ := NewSealer(make([]byte, KeySize))
	wrongKey := New(backend, Config{Sealer: other})
	if _, err := wrongKey.Resolve(ctx, tok.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound with the wrong key, got %v", err)
	}
}
