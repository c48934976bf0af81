package hdc

import (
	"fmt"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Strategy{}
)

// Register adds a strategy to the global table keyed by its ID. Intended
// to be called from each strategy's package init.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.ID()] = s
}

// Get looks up a registered strategy by id.
func Get(id string) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("hdc: unknown strategy %q", id)
	}
	return s, nil
}

// IDs returns the ids of every registered strategy, for diagnostics.
func IDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}
