// Package server runs the relay's HTTP listener.
//
// The listener can be started two ways:
//
//   - Start binds, serves and blocks until the context is cancelled, a
//     termination signal arrives or the listener fails. This is the
//     eager mode used by "relay run".
//   - EnsureRunning binds and serves in the background, returning as soon
//     as the port is bound. It is idempotent and is what the link issuer
//     calls before handing out a link in on-demand mode.
//
// If the background listener fails later, the server marks itself stopped
// so the next EnsureRunning binds again.
//
// Shutdown drains in-flight downloads for up to the configured shutdown
// timeout.
package server
