package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// ExceededError is returned by Wait when admission would require holding the
// caller longer than the configured ceiling.
type ExceededError struct {
	// RetryAfter is the earliest moment, relative to the rejection, at which
	// a new attempt could be admitted.
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the
// Retry-After response header. The result is never below 1.
func (e *ExceededError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RollingWindow admits at most limit events in any interval of length window.
//
// # Algorithm
//
//  1. Drop admission timestamps older than now - window
//  2. If fewer than limit remain and nobody is queued, record now and admit
//  3. Otherwise report how long until a slot is free for the caller
//
// Timestamps are kept oldest first. Callers blocked in Wait hold a ticket in
// a FIFO queue and are admitted in ticket order.
type RollingWindow struct {
	limit   int
	window  time.Duration
	maxHold time.Duration
	clock   Clock

	mu      sync.Mutex
	stamps  []time.Time
	queue   []uint64
	next    uint64
	changed chan struct{}
}

// Option configures a RollingWindow.
type Option func(*RollingWindow)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(rw *RollingWindow) { rw.clock = c }
}

// NewRollingWindow creates a limiter admitting limit events per window.
// maxHold bounds the total time Wait will hold a single caller; zero or
// negative means Wait holds until admitted or cancelled.
func NewRollingWindow(limit int, window, maxHold time.Duration, opts ...Option) *RollingWindow {
	if limit < 1 {
		limit = 1
	}
	rw := &RollingWindow{
		limit:   limit,
		window:  window,
		maxHold: maxHold,
		clock:   SystemClock{},
		stamps:  make([]time.Time, 0, limit),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// Admit records an admission and returns zero if the window has room and
// no caller is queued in Wait. Otherwise it records nothing and returns the
// duration until a slot would be free behind the queue.
func (rw *RollingWindow) Admit() time.Duration {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	now := rw.clock.Now()
	rw.pruneLocked(now)

	if len(rw.queue) == 0 && len(rw.stamps) < rw.limit {
		rw.stamps = append(rw.stamps, now)
		return 0
	}
	return rw.waitLocked(len(rw.queue), now)
}

// Wait blocks until the caller is admitted, ctx is done, or the accumulated
// hold would exceed the ceiling. Held callers are admitted first come, first
// served; a newcomer never takes a slot ahead of a queued caller. A
// cancelled or rejected caller leaves no trace in the window.
func (rw *RollingWindow) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rw.mu.Lock()
	start := rw.clock.Now()
	rw.pruneLocked(start)
	if len(rw.queue) == 0 && len(rw.stamps) < rw.limit {
		rw.stamps = append(rw.stamps, start)
		rw.mu.Unlock()
		return nil
	}
	ticket := rw.next
	rw.next++
	rw.queue = append(rw.queue, ticket)
	rw.mu.Unlock()

	for {
		rw.mu.Lock()
		now := rw.clock.Now()
		rw.pruneLocked(now)
		pos := rw.positionLocked(ticket)
		if pos == 0 && len(rw.stamps) < rw.limit {
			rw.stamps = append(rw.stamps, now)
			rw.leaveLocked(ticket)
			rw.mu.Unlock()
			return nil
		}
		wait := rw.waitLocked(pos, now)
		changed := rw.changed
		rw.mu.Unlock()

		if rw.maxHold > 0 && now.Sub(start)+wait > rw.maxHold {
			rw.leave(ticket)
			return &ExceededError{RetryAfter: wait}
		}

		select {
		case <-ctx.Done():
			rw.leave(ticket)
			return ctx.Err()
		case <-changed:
		case <-rw.clock.After(wait):
		}
	}
}

// waitLocked estimates how long the caller at queue position pos waits,
// assuming everyone ahead is admitted as soon as a slot frees.
// Caller must hold mu.
func (rw *RollingWindow) waitLocked(pos int, now time.Time) time.Duration {
	free := make([]time.Time, 0, rw.limit+pos)
	for i := len(rw.stamps); i < rw.limit; i++ {
		free = append(free, now)
	}
	for _, ts := range rw.stamps {
		free = append(free, ts.Add(rw.window))
	}

	var at time.Time
	for i := 0; i <= pos; i++ {
		at = free[i]
		if at.Before(now) {
			at = now
		}
		free = append(free, at.Add(rw.window))
	}

	wait := at.Sub(now)
	if wait <= 0 {
		// A caller ahead has not claimed its free slot yet.
		wait = time.Millisecond
	}
	return wait
}

func (rw *RollingWindow) positionLocked(ticket uint64) int {
	for i, t := range rw.queue {
		if t == ticket {
			return i
		}
	}
	return len(rw.queue)
}

func (rw *RollingWindow) leave(ticket uint64) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.leaveLocked(ticket)
}

// leaveLocked removes ticket from the queue and wakes the remaining
// waiters so they re-estimate. Caller must hold mu.
func (rw *RollingWindow) leaveLocked(ticket uint64) {
	i := rw.positionLocked(ticket)
	if i == len(rw.queue) {
		return
	}
	rw.queue = append(rw.queue[:i], rw.queue[i+1:]...)
	close(rw.changed)
	rw.changed = make(chan struct{})
}

// Queued returns how many callers are held in Wait.
func (rw *RollingWindow) Queued() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.queue)
}

// Remaining returns how many admissions the window could grant right now.
func (rw *RollingWindow) Remaining() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.pruneLocked(rw.clock.Now())
	return rw.limit - len(rw.stamps)
}

// ResetAt returns when the oldest admission leaves the window, or the
// current time if the window is empty.
func (rw *RollingWindow) ResetAt() time.Time {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	now := rw.clock.Now()
	rw.pruneLocked(now)
	if len(rw.stamps) == 0 {
		return now
	}
	return rw.stamps[0].Add(rw.window)
}

// Limit returns the number of admissions allowed per window.
func (rw *RollingWindow) Limit() int { return rw.limit }

// Window returns the window length.
func (rw *RollingWindow) Window() time.Duration { return rw.window }

// MaxHold returns the hold ceiling used by Wait.
func (rw *RollingWindow) MaxHold() time.Duration { return rw.maxHold }

// pruneLocked drops timestamps that are at least one window old.
// Caller must hold mu.
func (rw *RollingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-rw.window)
	i := 0
	for i < len(rw.stamps) && !rw.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rw.stamps = append(rw.stamps[:0], rw.stamps[i:]...)
	}
}
