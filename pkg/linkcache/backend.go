package linkcache

import (
	"context"
	"time"
)

// Backend persists link records. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Insert stores rec unless a row with the same digest is still live at
	// now, in which case it returns ErrCollision. An expired row with the
	// same digest is replaced.
	Insert(ctx context.Context, rec *Record, now time.Time) error

	// Get returns the row for digest, expired or not, or ErrNotFound.
	Get(ctx context.Context, digest string) (*Record, error)

	// Delete removes the row for digest. Missing rows are not an error.
	Delete(ctx context.Context, digest string) error

	// FindLive returns the newest live row for a source and natural key
	// digest, or ErrNotFound.
	FindLive(ctx context.Context, source SourceSystem, refDigest string, now time.Time) (*Record, error)

	// DeleteExpired removes every row with expires_at <= now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Stats counts rows relative to now.
	Stats(ctx context.Context, now time.Time) (Stats, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources. The backend is unusable afterwards.
	Close() error
}
