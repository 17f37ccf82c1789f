package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider has the secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get returns the secret value, or an error wrapping ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs (env, file, dotenv).
	Name() string
}

// Refresher is implemented by providers that can reload without restart.
type Refresher interface {
	Refresh(ctx context.Context) error
}
