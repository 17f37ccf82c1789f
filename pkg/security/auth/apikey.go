package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
)

// KeyValidator validates keys against named key sources.
type KeyValidator struct {
	mu      sync.RWMutex
	sources map[string]KeySource
}

// NewKeyValidator creates a validator accepting the key held by src.
func NewKeyValidator(name string, src KeySource) *KeyValidator {
	v := &KeyValidator{sources: make(map[string]KeySource)}
	v.Add(name, src)
	return v
}

// Validate returns the info of the key matching key.
//
// A source that fails to load is skipped; if no source matched and at
// least one failed, the error wraps ErrKeyUnavailable instead of
// ErrInvalidKey.
func (v *KeyValidator) Validate(ctx context.Context, key string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	var loadErr error
	for name, src := range v.sources {
		expected, err := src.Credential(ctx)
		if err != nil {
			loadErr = err
			continue
		}
		if expected != "" && subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1 {
			return &APIKeyInfo{Name: name}, nil
		}
	}
	if loadErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, loadErr)
	}
	return nil, ErrInvalidKey
}

// Add registers or replaces the key source for name.
func (v *KeyValidator) Add(name string, src KeySource) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sources[name] = src
}

// Remove drops the key source for name.
func (v *KeyValidator) Remove(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sources, name)
}

// Names returns the registered key names.
func (v *KeyValidator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.sources))
	for name := range v.sources {
		names = append(names, name)
	}
	return names
}
