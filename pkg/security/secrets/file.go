package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider reads each secret from its own file in a directory, the way
// container orchestrators mount secrets. Files must be mode 0600 or 0400.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	values  map[string]string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewFileProvider creates a provider over dir. With watch set, changes in
// dir drop the cached values so the next Get re-reads the file.
func NewFileProvider(dir string, watch bool, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}

	p := &FileProvider{
		dir:    dir,
		logger: logger.With("component", "secrets.file"),
		values: make(map[string]string),
		stopCh: make(chan struct{}),
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch secrets directory: %w", err)
		}
		p.watcher = watcher
		go p.watchLoop()
	}

	p.logger.Info("file secret provider started", "path", dir, "watch", watch)
	return p, nil
}

// Get implements Provider.
func (p *FileProvider) Get(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	if v, ok := p.values[name]; ok {
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	path, err := p.pathFor(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no file for %s", ErrNotFound, redactName(name))
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", redactName(name))
	}
	if mode := info.Mode().Perm(); mode != 0o600 && mode != 0o400 {
		return "", fmt.Errorf("insecure permissions on secret %s: %o (expected 0600 or 0400)", redactName(name), mode)
	}

	// #nosec G304 - path is confined to dir by pathFor
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: empty file for %s", ErrNotFound, redactName(name))
	}

	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
	return value, nil
}

// pathFor joins name to dir and rejects anything escaping it.
func (p *FileProvider) pathFor(name string) (string, error) {
	absBase, err := filepath.Abs(p.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secrets directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(p.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name: path escapes secrets directory")
	}
	return absPath, nil
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// Refresh drops cached values.
func (p *FileProvider) Refresh(context.Context) error {
	p.mu.Lock()
	p.values = make(map[string]string)
	p.mu.Unlock()
	return nil
}

// Close stops watching.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.stopCh)
	return p.watcher.Close()
}

func (p *FileProvider) watchLoop() {
	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&changed != 0 {
				p.logger.Debug("secret file changed, dropping cache",
					"file", redactName(filepath.Base(event.Name)),
					"op", event.Op.String(),
				)
				_ = p.Refresh(context.Background())
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file watcher error", "error", err)

		case <-p.stopCh:
			return
		}
	}
}
