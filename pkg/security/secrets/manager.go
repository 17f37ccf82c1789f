package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Manager resolves secrets through providers in priority order.
type Manager struct {
	providers []Provider
	cache     *cache
	logger    *slog.Logger
}

// NewManager creates a manager. cacheTTL of zero disables caching.
func NewManager(providers []Provider, cacheTTL time.Duration) *Manager {
	return &Manager{
		providers: providers,
		cache:     newCache(cacheTTL),
		logger:    slog.Default().With("component", "secrets"),
	}
}

// Get returns the first value any provider has for name.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	if v, ok := m.cache.get(name); ok {
		return v, nil
	}

	var failures []string
	for _, p := range m.providers {
		v, err := p.Get(ctx, name)
		if err == nil {
			m.cache.set(name, v)
			m.logger.Debug("secret resolved", "name", redactName(name), "provider", p.Name())
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		}
	}

	if len(failures) > 0 {
		return "", fmt.Errorf("failed to get secret %s: %s", redactName(name), strings.Join(failures, "; "))
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, redactName(name))
}

// Refresh reloads refreshable providers and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var failures []string
	for _, p := range m.providers {
		r, ok := p.(Refresher)
		if !ok {
			continue
		}
		if err := r.Refresh(ctx); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		}
	}
	m.cache.clear()

	if len(failures) > 0 {
		return fmt.Errorf("failed to refresh some providers: %s", strings.Join(failures, "; "))
	}
	return nil
}

// Credential binds a secret name to the manager.
func (m *Manager) Credential(name string) *Credential {
	return &Credential{manager: m, name: name}
}

// Credential resolves one named secret on demand. It satisfies the
// upstream client's credential source.
type Credential struct {
	manager *Manager
	name    string
}

// Credential returns the current value.
func (c *Credential) Credential(ctx context.Context) (string, error) {
	return c.manager.Get(ctx, c.name)
}

// redactName keeps the first and last two characters.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
