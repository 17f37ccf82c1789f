package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// DotenvProvider reads secrets from a .env file without exporting them
// into the process environment. A missing file simply has no secrets.
type DotenvProvider struct {
	path string

	mu     sync.RWMutex
	values map[string]string
	loaded bool
}

// NewDotenvProvider creates a provider for the file at path.
func NewDotenvProvider(path string) *DotenvProvider {
	return &DotenvProvider{path: path}
}

// Get implements Provider.
func (p *DotenvProvider) Get(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()

	if !loaded {
		if err := p.Refresh(ctx); err != nil {
			return "", err
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	key := EnvVarName("", name)
	if v := p.values[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w in %s (key: %s)", ErrNotFound, p.path, key)
}

// Name implements Provider.
func (p *DotenvProvider) Name() string { return "dotenv" }

// Refresh re-reads the file.
func (p *DotenvProvider) Refresh(context.Context) error {
	values, err := godotenv.Read(p.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", p.path, err)
		}
		values = map[string]string{}
	}

	p.mu.Lock()
	p.values = values
	p.loaded = true
	p.mu.Unlock()
	return nil
}
