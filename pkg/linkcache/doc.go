// Package linkcache stores the short-lived download tokens that stand in for
// upstream documents.
//
// # Overview
//
// A token is an opaque, URL-safe string with at least 128 bits of entropy.
// It maps to a DownloadToken: the owning source system, a descriptor the
// owning adapter can turn back into an upstream request, a display filename
// and an expiry. Tokens are bearer capabilities, so only their SHA-256
// digests are used as storage keys, and descriptors can be sealed at rest:
//
//	sealer, _ := linkcache.NewSealer(key)
//	backend, _ := linkcache.NewSQLiteBackend(linkcache.SQLiteConfig{Path: "links.db"})
//	cache := linkcache.New(backend, linkcache.Config{TTL: 7 * 24 * time.Hour, Sealer: sealer})
//
//	tok, _ := cache.Issue(ctx, linkcache.IssueRequest{Source: linkcache.SourceSelf, ...})
//	got, err := cache.Resolve(ctx, tok.Token) // ErrNotFound once expired
//
// # Backends
//
//   - MemoryBackend: process-local map, used in tests and one-shot tools
//   - SQLiteBackend: durable single-host store (modernc or mattn driver)
//   - RedisBackend: shared store with native key expiry
//
// # Expiry
//
// Resolve treats a token as absent from the instant now >= ExpiresAt and
// deletes the row it found expired. Sweep removes the rest in bulk; the
// Scheduler runs it on a cron schedule.
package linkcache
