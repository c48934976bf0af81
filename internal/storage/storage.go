// Package storage implements the pluggable persistence boundary (spec
// §6 "Storage (delegated)"): an opaque byte round-trip for a (theory,
// session snapshot) pair through a storage Adapter, plus a SQLite-backed
// Adapter and a byte codec for the Vocabulary/KnowledgeBase pair that
// keeps fact ordering exact so reloaded bundles are byte-identical (spec
// §235). The concrete on-disk layout of a file-based theory-pack
// adapter is explicitly out of scope; this package only owns the
// interface, the SQLite reference implementation, and a hot-reload
// helper for long-lived sessions.
package storage

import (
	"context"
	"sync"
)

// Adapter is the pluggable persistence boundary a Session delegates
// save/load to. Implementations must round-trip whatever bytes Save was
// given, unmodified, back through Load.
type Adapter interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Close() error
}

// MemoryAdapter is an in-process Adapter for sessions that opt out of
// disk persistence (spec §6 Storage is delegated/opt-in; "memory" driver).
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryAdapter returns an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: make(map[string][]byte)}
}

func (m *MemoryAdapter) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemoryAdapter) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	return data, ok, nil
}

func (m *MemoryAdapter) Close() error { return nil }
