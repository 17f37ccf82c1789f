// Package ratelimit guards the upstream document-download quota.
//
// # Overview
//
// The upstream patent-data API allows a fixed number of document downloads
// per rolling window for a single API credential (5 per 10 seconds by
// default). Every outbound download in the process must pass through one
// shared RollingWindow before the request leaves the host:
//
//	limiter := ratelimit.NewRollingWindow(5, 10*time.Second, 15*time.Second)
//	if err := limiter.Wait(ctx); err != nil {
//	    var exceeded *ratelimit.ExceededError
//	    if errors.As(err, &exceeded) {
//	        // answer 429 with Retry-After: exceeded.RetryAfter
//	    }
//	    return err
//	}
//	// perform exactly one upstream call now
//
// # Admission Semantics
//
// Admit records an admission only when it returns zero, so callers must
// issue the upstream request immediately after a successful admission.
// Waiters never record anything while sleeping; they re-check the window
// when they wake. Held callers queue by arrival and are admitted in that
// order, and nobody, including Admit, takes a slot while the queue is
// non-empty.
//
// # Thread Safety
//
// RollingWindow serializes Admit with a mutex. Wait sleeps outside the lock.
package ratelimit
