package auth

import (
	"context"
	"errors"
)

var (
	// ErrMissingKey is returned when the request carries no key.
	ErrMissingKey = errors.New("missing API key")

	// ErrInvalidKey is returned when the presented key does not match.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyUnavailable is returned when the expected key cannot be loaded.
	ErrKeyUnavailable = errors.New("API key unavailable")
)

// APIKeyInfo describes an authenticated caller.
type APIKeyInfo struct {
	// Name identifies the key, e.g. "operator".
	Name string

	// Source is where the key was presented, e.g. "header:X-Admin-Key".
	Source string
}

// KeySource supplies the expected key at call time.
type KeySource interface {
	Credential(ctx context.Context) (string, error)
}

// Validator checks a presented key.
type Validator interface {
	Validate(ctx context.Context, key string) (*APIKeyInfo, error)
}
