package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func waitForPending(t *testing.T, c *fakeClock, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending timers, have %d", n, c.pending())
		}
		time.Sleep(time.Millisecond)
	}
}

// ============================================================================
// Admit Tests
// ============================================================================

func TestRollingWindow_AdmitUpToLimit(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(5, 10*time.Second, 0, WithClock(clock))

	for i := 0; i < 5; i++ {
		if wait := rw.Admit(); wait != 0 {
			t.Fatalf("admission %d: expected no wait, got %v", i+1, wait)
		}
		clock.Advance(400 * time.Millisecond)
	}

	// 2s have elapsed since the first admission.
	wait := rw.Admit()
	if wait != 8*time.Second {
		t.Errorf("Expected 8s wait for sixth admission, got %v", wait)
	}
	if rw.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", rw.Remaining())
	}
}

func TestRollingWindow_SlotFreesAtWindowBoundary(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(1, time.Second, 0, WithClock(clock))

	if rw.Admit() != 0 {
		t.Fatal("Expected first admission")
	}
	clock.Advance(999 * time.Millisecond)
	if wait := rw.Admit(); wait != time.Millisecond {
		t.Fatalf("Expected 1ms wait, got %v", wait)
	}
	clock.Advance(time.Millisecond)
	if wait := rw.Admit(); wait != 0 {
		t.Fatalf("Expected admission exactly one window later, got wait %v", wait)
	}
}

func TestRollingWindow_ResetAt(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(2, 10*time.Second, 0, WithClock(clock))

	if got := rw.ResetAt(); !got.Equal(clock.Now()) {
		t.Errorf("Expected ResetAt to be now for empty window, got %v", got)
	}

	start := clock.Now()
	rw.Admit()
	clock.Advance(3 * time.Second)
	rw.Admit()

	if got := rw.ResetAt(); !got.Equal(start.Add(10 * time.Second)) {
		t.Errorf("Expected ResetAt %v, got %v", start.Add(10*time.Second), got)
	}
}

// TestRollingWindow_NeverExceedsLimit drives the limiter with bursts of
// concurrent callers at random instants and checks that no interval of one
// window ever contains more than limit admissions.
func TestRollingWindow_NeverExceedsLimit(t *testing.T) {
	const (
		limit  = 5
		window = 10 * time.Second
	)

	clock := newFakeClock()
	rw := NewRollingWindow(limit, window, 0, WithClock(clock))
	rng := rand.New(rand.NewSource(42))

	var (
		mu       sync.Mutex
		admitted []time.Time
	)

	for step := 0; step < 2000; step++ {
		clock.Advance(time.Duration(rng.Intn(3000)) * time.Millisecond)

		burst := rng.Intn(8) + 1
		var wg sync.WaitGroup
		for i := 0; i < burst; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if rw.Admit() == 0 {
					at := clock.Now()
					mu.Lock()
					admitted = append(admitted, at)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })
	if len(admitted) < limit {
		t.Fatalf("Expected at least %d admissions, got %d", limit, len(admitted))
	}
	for i := 0; i+limit < len(admitted); i++ {
		if gap := admitted[i+limit].Sub(admitted[i]); gap < window {
			t.Fatalf("Admissions %d and %d are %v apart; more than %d in one window", i, i+limit, gap, limit)
		}
	}
}

// ============================================================================
// Wait Tests
// ============================================================================

func TestRollingWindow_WaitHoldsUntilSlotFrees(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(1, 10*time.Second, time.Minute, WithClock(clock))

	if err := rw.Wait(context.Background()); err != nil {
		t.Fatalf("First Wait failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rw.Wait(context.Background()) }()

	waitForPending(t, clock, 1)
	select {
	case err := <-done:
		t.Fatalf("Wait returned before the window moved: %v", err)
	default:
	}

	clock.Advance(10 * time.Second)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected admission, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the window moved")
	}
}

func TestRollingWindow_WaitRejectsBeyondMaxHold(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(2, 10*time.Second, 5*time.Second, WithClock(clock))

	rw.Admit()
	rw.Admit()
	clock.Advance(2 * time.Second)

	err := rw.Wait(context.Background())
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("Expected ExceededError, got %v", err)
	}
	if exceeded.RetryAfter != 8*time.Second {
		t.Errorf("Expected RetryAfter 8s, got %v", exceeded.RetryAfter)
	}
	if exceeded.RetryAfterSeconds() != 8 {
		t.Errorf("Expected 8 seconds, got %d", exceeded.RetryAfterSeconds())
	}

	clock.Advance(8 * time.Second)
	if rw.Remaining() != 2 {
		t.Errorf("Rejected caller must not consume a slot, remaining %d", rw.Remaining())
	}
}

func TestRollingWindow_WaitCancelledLeavesNoTrace(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(1, 10*time.Second, 0, WithClock(clock))
	rw.Admit()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rw.Wait(ctx) }()

	waitForPending(t, clock, 1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait ignored cancellation")
	}

	clock.Advance(10 * time.Second)
	if rw.Remaining() != 1 {
		t.Errorf("Expected full window after cancellation, remaining %d", rw.Remaining())
	}
}

func TestRollingWindow_WaitAdmitsInArrivalOrder(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(1, 10*time.Second, 0, WithClock(clock))
	rw.Admit()

	order := make(chan string, 3)
	wait := func(name string) {
		if err := rw.Wait(context.Background()); err != nil {
			t.Errorf("%s: Wait failed: %v", name, err)
		}
		order <- name
	}
	waitQueued := func(n int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for rw.Queued() != n {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %d queued callers, have %d", n, rw.Queued())
			}
			time.Sleep(time.Millisecond)
		}
	}
	expect := func(want string) {
		t.Helper()
		select {
		case got := <-order:
			if got != want {
				t.Fatalf("Expected %s to be admitted next, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s was not admitted", want)
		}
	}

	go wait("first")
	waitQueued(1)
	go wait("second")
	waitQueued(2)

	if rw.Admit() == 0 {
		t.Fatal("Admit must not jump the queue")
	}

	clock.Advance(10 * time.Second)
	expect("first")

	go wait("third")
	waitQueued(2)

	clock.Advance(10 * time.Second)
	expect("second")
	clock.Advance(10 * time.Second)
	expect("third")
}

func TestRollingWindow_WaitCancelledCallerUnblocksQueue(t *testing.T) {
	clock := newFakeClock()
	rw := NewRollingWindow(1, 10*time.Second, 0, WithClock(clock))
	rw.Admit()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rw.Wait(ctx) }()
	for rw.Queued() != 1 {
		time.Sleep(time.Millisecond)
	}

	done := make(chan error, 1)
	go func() { done <- rw.Wait(context.Background()) }()
	for rw.Queued() != 2 {
		time.Sleep(time.Millisecond)
	}

	cancel()
	for rw.Queued() != 1 {
		time.Sleep(time.Millisecond)
	}
	// The survivor re-estimates and needs only the first slot.
	waitForPending(t, clock, 3)
	clock.Advance(10 * time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected admission, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Queued caller still blocked after the one ahead left")
	}
}

func TestRollingWindow_WaitManyCallersRealClock(t *testing.T) {
	const window = 300 * time.Millisecond
	rw := NewRollingWindow(5, window, 5*time.Second)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rw.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed >= window {
		t.Fatalf("First five admissions took %v; expected no hold", elapsed)
	}

	if err := rw.Wait(context.Background()); err != nil {
		t.Fatalf("Sixth Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Errorf("Sixth admission after %v; expected at least %v", elapsed, window)
	}
}

func TestExceededError_RetryAfterSecondsFloor(t *testing.T) {
	e := &ExceededError{RetryAfter: 10 * time.Millisecond}
	if e.RetryAfterSeconds() != 1 {
		t.Errorf("Expected floor of 1 second, got %d", e.RetryAfterSeconds())
	}
	e = &ExceededError{RetryAfter: 1500 * time.Millisecond}
	if e.RetryAfterSeconds() != 2 {
		t.Errorf("Expected 2 seconds, got %d", e.RetryAfterSeconds())
	}
}
