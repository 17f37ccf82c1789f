package linkcache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps records in a map. Contents are lost on exit.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

// Insert implements Backend.
func (m *MemoryBackend) Insert(_ context.Context, rec *Record, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[rec.Digest]; ok && existing.ExpiresAt.After(now) {
		return ErrCollision
	}
	m.records[rec.Digest] = cloneRecord(rec)
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, digest string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[digest]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, digest)
	return nil
}

// FindLive implements Backend.
func (m *MemoryBackend) FindLive(_ context.Context, source SourceSystem, refDigest string, now time.Time) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Record
	for _, rec := range m.records {
		if rec.Source != source || rec.RefDigest != refDigest || !rec.ExpiresAt.After(now) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(best), nil
}

// DeleteExpired implements Backend.
func (m *MemoryBackend) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for digest, rec := range m.records {
		if !rec.ExpiresAt.After(now) {
			delete(m.records, digest)
			removed++
		}
	}
	return removed, nil
}

// Stats implements Backend.
func (m *MemoryBackend) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{BySource: make(map[SourceSystem]int)}
	for _, rec := range m.records {
		stats.Total++
		if rec.ExpiresAt.After(now) {
			stats.Active++
			stats.BySource[rec.Source]++
		} else {
			stats.Expired++
		}
	}
	return stats, nil
}

// Ping implements Backend.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }

func cloneRecord(rec *Record) *Record {
	c := *rec
	c.Payload = append([]byte(nil), rec.Payload...)
	return &c
}
